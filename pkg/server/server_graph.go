package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/orneryd/mimirgw/pkg/cypher"
	"github.com/orneryd/mimirgw/pkg/expand"
	"github.com/orneryd/mimirgw/pkg/graph"
	"github.com/orneryd/mimirgw/pkg/neoexec"
)

// =============================================================================
// Graph Query Endpoints
// =============================================================================

type queryRequest struct {
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
	// Params is accepted as an alias for Parameters.
	Params map[string]any `json:"params,omitempty"`
}

func (q *queryRequest) parameters() map[string]any {
	if q.Parameters != nil {
		return q.Parameters
	}
	return q.Params
}

type queryMeta struct {
	QueryType       string `json:"query_type"`
	RecordsReturned int    `json:"records_returned"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

type queryResponse struct {
	Nodes            []graph.GraphNode `json:"nodes"`
	Edges            []graph.GraphEdge `json:"edges"`
	TruncatedByLimit bool              `json:"truncatedByLimit"`
	Meta             queryMeta         `json:"meta"`
}

// handleQuery classifies, executes, and projects a client Cypher query.
// POST /api/{db}/graph/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	db := r.PathValue("db")

	var req queryRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError, "invalid request body", nil)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError,
			"query must be a non-empty string", nil)
		return
	}

	// Refuse anything that mutates the store before it reaches the driver.
	verdict := s.classifier.Classify(req.Query)
	if !verdict.ReadOnly {
		queriesRejectedTotal.Inc()
		s.writeAPIError(w, http.StatusForbidden, codeWriteForbidden,
			"query contains a write operation and was not executed",
			map[string]any{
				"forbidden_keyword":  verdict.Keyword,
				"allowed_operations": allowedOperations,
				"query":              truncateQuery(req.Query),
			})
		return
	}

	start := time.Now()
	rows, err := s.store.Database(db).Run(r.Context(), req.Query, req.parameters())
	duration := time.Since(start)
	s.logSlowQuery(req.Query, duration, err)

	if err != nil {
		s.writeQueryError(w, req.Query, err)
		return
	}

	result, err := graph.Project(rows, cypher.HasLimitClause(req.Query))
	if err != nil {
		s.writeAPIError(w, http.StatusInternalServerError, codeInternalError,
			"failed to project query result", map[string]any{"reason": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Nodes:            result.Nodes,
		Edges:            result.Edges,
		TruncatedByLimit: result.TruncatedByLimit,
		Meta: queryMeta{
			QueryType:       "r",
			RecordsReturned: len(rows),
			ExecutionTimeMs: duration.Milliseconds(),
		},
	})
}

type expandRequest struct {
	IDs       []string `json:"ids"`
	Depth     int      `json:"depth,omitempty"`
	Direction string   `json:"direction,omitempty"`
	MaxNodes  int      `json:"maxNodes,omitempty"`
}

// handleExpand runs a bounded neighborhood expansion around the seed nodes.
// POST /api/{db}/graph/nodes/expand
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	db := r.PathValue("db")

	var req expandRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError, "invalid request body", nil)
		return
	}

	if len(req.IDs) == 0 {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError,
			"ids must contain at least one node id", nil)
		return
	}

	exp := s.config.Expansion
	if req.Depth > exp.MaxDepth {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError,
			"depth exceeds the configured maximum",
			map[string]any{"depth": req.Depth, "max_depth": exp.MaxDepth})
		return
	}
	if req.MaxNodes > exp.MaxNodesCap {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError,
			"maxNodes exceeds the configured maximum",
			map[string]any{"max_nodes": req.MaxNodes, "max_nodes_cap": exp.MaxNodesCap})
		return
	}

	spec := expand.Spec{
		SeedIDs:   req.IDs,
		Depth:     req.Depth,
		Direction: expand.Direction(req.Direction),
		MaxNodes:  req.MaxNodes,
	}
	if spec.Depth == 0 {
		spec.Depth = exp.DefaultDepth
	}
	if spec.MaxNodes == 0 {
		spec.MaxNodes = exp.DefaultMaxNodes
	}
	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError, err.Error(), nil)
		return
	}

	start := time.Now()
	result, err := expand.Expand(r.Context(), spec, s.store.Database(db))
	duration := time.Since(start)

	if err != nil {
		s.writeQueryError(w, expand.TraversalQuery(spec.Direction), err)
		return
	}
	if result.TruncatedByLimit {
		expansionsTruncatedTotal.Inc()
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Nodes:            result.Nodes,
		Edges:            result.Edges,
		TruncatedByLimit: result.TruncatedByLimit,
		Meta: queryMeta{
			QueryType:       "r",
			RecordsReturned: len(result.Nodes) + len(result.Edges),
			ExecutionTimeMs: duration.Milliseconds(),
		},
	})
}

// handleNodeByID fetches a single node by element id.
// GET /api/{db}/graph/nodes/{id}
func (s *Server) handleNodeByID(w http.ResponseWriter, r *http.Request) {
	db := r.PathValue("db")
	id := r.PathValue("id")

	node, err := s.store.Database(db).NodeByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, neoexec.ErrNodeNotFound) {
			s.writeAPIError(w, http.StatusNotFound, codeNodeNotFound,
				"no node with the given id", map[string]any{"id": id})
			return
		}
		s.writeQueryError(w, "", err)
		return
	}

	s.writeJSON(w, http.StatusOK, node)
}
