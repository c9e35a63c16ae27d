package neoexec

import (
	"context"
	"fmt"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// Fixed read-only queries issued by the gateway itself. These never pass
// through the classifier; they are constants, not client input.
const (
	queryLabels            = "CALL db.labels() YIELD label RETURN label"
	queryRelationshipTypes = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType"
	queryNodeByID          = "MATCH (n) WHERE elementId(n) = $id RETURN n"
	queryNodeCount         = "MATCH (n) RETURN count(n) AS count"
	queryEdgeCount         = "MATCH ()-[r]->() RETURN count(r) AS count"

	querySearchNodes = "MATCH (n) " +
		"WHERE any(key IN keys(n) WHERE toLower(toString(n[key])) CONTAINS toLower($q)) " +
		"RETURN n LIMIT $limit"
	querySearchEdges = "MATCH ()-[r]->() " +
		"WHERE any(key IN keys(r) WHERE toLower(toString(r[key])) CONTAINS toLower($q)) " +
		"RETURN r LIMIT $limit"
)

// Labels lists the node labels present in the database.
func (d *DatabaseRunner) Labels(ctx context.Context) ([]string, error) {
	return d.stringColumn(ctx, queryLabels, "label")
}

// RelationshipTypes lists the relationship types present in the database.
func (d *DatabaseRunner) RelationshipTypes(ctx context.Context) ([]string, error) {
	return d.stringColumn(ctx, queryRelationshipTypes, "relationshipType")
}

func (d *DatabaseRunner) stringColumn(ctx context.Context, query, column string) ([]string, error) {
	rows, err := d.Run(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		scalar, ok := row.Values[column].(graph.Scalar)
		if !ok {
			return nil, fmt.Errorf("column %q: unexpected value %T", column, row.Values[column])
		}
		s, ok := scalar.Value.(string)
		if !ok {
			return nil, fmt.Errorf("column %q: unexpected scalar %T", column, scalar.Value)
		}
		out = append(out, s)
	}
	return out, nil
}

// NodeByID fetches a single node by element id. Returns ErrNodeNotFound when
// no node matches.
func (d *DatabaseRunner) NodeByID(ctx context.Context, id string) (graph.GraphNode, error) {
	rows, err := d.Run(ctx, queryNodeByID, map[string]any{"id": id})
	if err != nil {
		return graph.GraphNode{}, err
	}

	result, err := graph.Project(rows, false)
	if err != nil {
		return graph.GraphNode{}, err
	}
	if len(result.Nodes) == 0 {
		return graph.GraphNode{}, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	return result.Nodes[0], nil
}

// NodeCount counts all nodes in the database.
func (d *DatabaseRunner) NodeCount(ctx context.Context) (int64, error) {
	return d.countQuery(ctx, queryNodeCount)
}

// EdgeCount counts all relationships in the database.
func (d *DatabaseRunner) EdgeCount(ctx context.Context) (int64, error) {
	return d.countQuery(ctx, queryEdgeCount)
}

func (d *DatabaseRunner) countQuery(ctx context.Context, query string) (int64, error) {
	rows, err := d.Run(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	scalar, ok := rows[0].Values["count"].(graph.Scalar)
	if !ok {
		return 0, fmt.Errorf("count query: unexpected value %T", rows[0].Values["count"])
	}
	n, ok := scalar.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("count query: unexpected scalar %T", scalar.Value)
	}
	return n, nil
}

// SearchNodes finds nodes whose property values contain q, case-insensitive.
// truncatedByLimit reflects whether the limit was filled: a full page means
// more matches may exist.
func (d *DatabaseRunner) SearchNodes(ctx context.Context, q string, limit int) (graph.ProjectionResult, error) {
	return d.search(ctx, querySearchNodes, q, limit)
}

// SearchEdges finds relationships whose property values contain q,
// case-insensitive.
func (d *DatabaseRunner) SearchEdges(ctx context.Context, q string, limit int) (graph.ProjectionResult, error) {
	return d.search(ctx, querySearchEdges, q, limit)
}

func (d *DatabaseRunner) search(ctx context.Context, query, q string, limit int) (graph.ProjectionResult, error) {
	rows, err := d.Run(ctx, query, map[string]any{"q": q, "limit": limit})
	if err != nil {
		return graph.ProjectionResult{}, err
	}
	return graph.Project(rows, len(rows) >= limit)
}
