package server

import (
	"context"
	"net/http"
	"time"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// =============================================================================
// Health / Status / Schema / Search Endpoints
// =============================================================================

const healthCheckTimeout = 5 * time.Second

// defaultSearchLimit bounds property search result pages when the client
// does not pass ?limit=.
const defaultSearchLimit = 100

// handleHealth reports Neo4j connectivity. Public, no auth.
// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.VerifyConnectivity(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"neo4j":  "disconnected",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"neo4j":  "connected",
	})
}

// handleStatus reports uptime and request counters.
// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":   int64(stats.Uptime.Seconds()),
		"request_count":    stats.RequestCount,
		"error_count":      stats.ErrorCount,
		"active_requests":  stats.ActiveRequests,
		"slow_query_count": stats.SlowQueryCount,
	})
}

// handleNodeCount returns the total node count.
// GET /api/{db}/graph/nodes/count
func (s *Server) handleNodeCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Database(r.PathValue("db")).NodeCount(r.Context())
	if err != nil {
		s.writeQueryError(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

// handleEdgeCount returns the total relationship count.
// GET /api/{db}/graph/edges/count
func (s *Server) handleEdgeCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Database(r.PathValue("db")).EdgeCount(r.Context())
	if err != nil {
		s.writeQueryError(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

// handleNodeTypes lists node labels.
// GET /api/{db}/graph/schema/node/types
func (s *Server) handleNodeTypes(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.Database(r.PathValue("db")).Labels(r.Context())
	if err != nil {
		s.writeQueryError(w, "", err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"types": labels})
}

// handleEdgeTypes lists relationship types.
// GET /api/{db}/graph/schema/edge/types
func (s *Server) handleEdgeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.Database(r.PathValue("db")).RelationshipTypes(r.Context())
	if err != nil {
		s.writeQueryError(w, "", err)
		return
	}
	if types == nil {
		types = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

// handleSearchNodes searches node property values, case-insensitive.
// GET /api/{db}/search/node/full?q=...&limit=
func (s *Server) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	s.handleSearch(w, r, func(ctx context.Context, q Querier, term string, limit int) (graph.ProjectionResult, error) {
		return q.SearchNodes(ctx, term, limit)
	})
}

// handleSearchEdges searches relationship property values, case-insensitive.
// GET /api/{db}/search/edge/full?q=...&limit=
func (s *Server) handleSearchEdges(w http.ResponseWriter, r *http.Request) {
	s.handleSearch(w, r, func(ctx context.Context, q Querier, term string, limit int) (graph.ProjectionResult, error) {
		return q.SearchEdges(ctx, term, limit)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request,
	search func(context.Context, Querier, string, int) (graph.ProjectionResult, error)) {

	term := r.URL.Query().Get("q")
	if term == "" {
		s.writeAPIError(w, http.StatusBadRequest, codeValidationError,
			"q query parameter is required", nil)
		return
	}
	limit := parseIntQuery(r, "limit", defaultSearchLimit)

	result, err := search(r.Context(), s.store.Database(r.PathValue("db")), term, limit)
	if err != nil {
		s.writeQueryError(w, "", err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
