// Package expand implements neighborhood expansion: given a seed set of node
// ids, a traversal depth, a direction filter, and a node budget, it drives
// one depth-bounded traversal query per level through a query runner and
// accumulates the induced subgraph without exceeding the budget.
package expand

import (
	"context"
	"errors"
	"fmt"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// Errors reported by spec validation.
var (
	ErrNoSeeds          = errors.New("expansion requires at least one seed id")
	ErrInvalidDepth     = errors.New("expansion depth must be at least 1")
	ErrInvalidMaxNodes  = errors.New("expansion maxNodes must be at least 1")
	ErrInvalidDirection = errors.New("expansion direction must be in, out, or both")
)

// Direction filters which edges a traversal follows relative to the visited
// node.
type Direction string

const (
	// DirectionOut follows edges where the visited node is the start.
	DirectionOut Direction = "out"
	// DirectionIn follows edges where the visited node is the end.
	DirectionIn Direction = "in"
	// DirectionBoth follows edges in either orientation.
	DirectionBoth Direction = "both"
)

// Default values applied by ApplyDefaults for fields left at their zero value.
const (
	DefaultDepth    = 1
	DefaultMaxNodes = 50
)

// Spec describes one expansion request. It is consumed entirely by Expand and
// never persisted.
type Spec struct {
	SeedIDs   []string
	Depth     int
	Direction Direction
	MaxNodes  int
}

// ApplyDefaults fills zero-valued Depth, Direction, and MaxNodes.
func (s *Spec) ApplyDefaults() {
	if s.Depth == 0 {
		s.Depth = DefaultDepth
	}
	if s.Direction == "" {
		s.Direction = DirectionBoth
	}
	if s.MaxNodes == 0 {
		s.MaxNodes = DefaultMaxNodes
	}
}

// Validate rejects specs that cannot describe a traversal.
func (s *Spec) Validate() error {
	if len(s.SeedIDs) == 0 {
		return ErrNoSeeds
	}
	if s.Depth < 1 {
		return ErrInvalidDepth
	}
	if s.MaxNodes < 1 {
		return ErrInvalidMaxNodes
	}
	switch s.Direction {
	case DirectionIn, DirectionOut, DirectionBoth:
		return nil
	default:
		return ErrInvalidDirection
	}
}

// QueryRunner executes one already-validated traversal query against a
// resolved database handle. The gateway's executor satisfies this; tests use
// fakes.
type QueryRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]graph.Row, error)
}

// TraversalQuery returns the per-level query for the given direction. The
// direction filter is expressed in the pattern itself rather than
// post-filtered: for "out" the visited node is the relationship's start, for
// "in" its end.
func TraversalQuery(direction Direction) string {
	switch direction {
	case DirectionOut:
		return "MATCH (n)-[r]->(m) WHERE elementId(n) IN $ids RETURN n, r, m"
	case DirectionIn:
		return "MATCH (n)<-[r]-(m) WHERE elementId(n) IN $ids RETURN n, r, m"
	default:
		return "MATCH (n)-[r]-(m) WHERE elementId(n) IN $ids RETURN n, r, m"
	}
}

// Expand runs the traversal state machine: one query per level from 1 to
// spec.Depth, each level's frontier being the node ids newly discovered at
// the previous level.
//
// The node budget is global across the whole traversal. The instant a node
// would exceed it, the partial level merged so far is kept, the result is
// marked truncated, and no further levels run. An edge connecting two
// already-discovered nodes is still merged even though it contributes no
// frontier node: it belongs to the induced subgraph.
//
// Failures are all-or-nothing: if any level's query fails, everything
// accumulated from prior levels is discarded, because a partial result is
// indistinguishable from a complete one on the client side.
func Expand(ctx context.Context, spec Spec, runner QueryRunner) (graph.ProjectionResult, error) {
	if err := spec.Validate(); err != nil {
		return graph.ProjectionResult{}, err
	}

	acc := graph.NewProjection()
	visited := make(map[string]struct{}, len(spec.SeedIDs))
	frontier := make([]string, 0, len(spec.SeedIDs))
	for _, id := range spec.SeedIDs {
		if _, dup := visited[id]; dup {
			continue
		}
		visited[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for level := 1; level <= spec.Depth && len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return graph.ProjectionResult{}, err
		}

		rows, err := runner.Run(ctx, TraversalQuery(spec.Direction), map[string]any{"ids": frontier})
		if err != nil {
			return graph.ProjectionResult{}, fmt.Errorf("expansion level %d: %w", level, err)
		}

		next, truncated, err := mergeLevel(acc, rows, visited, spec.MaxNodes)
		if err != nil {
			return graph.ProjectionResult{}, fmt.Errorf("expansion level %d: %w", level, err)
		}
		if truncated {
			acc.MarkTruncated()
			break
		}
		frontier = next
	}

	return acc.Result(), nil
}

// mergeLevel feeds one level's rows into the accumulator in discovery order,
// enforcing the node budget. It returns the next frontier and whether the
// budget was exhausted mid-level.
func mergeLevel(acc *graph.Projection, rows []graph.Row, visited map[string]struct{}, maxNodes int) (next []string, truncated bool, err error) {
	for _, row := range rows {
		for _, key := range row.Keys {
			stop, err := mergeValue(acc, row.Values[key], visited, &next, maxNodes)
			if err != nil {
				return nil, false, err
			}
			if stop {
				return nil, true, nil
			}
		}
	}
	return next, false, nil
}

// mergeValue merges one cell value. It reports stop=true when a new node was
// refused because the budget is exhausted; merging halts at that point so
// "as many new nodes as fit" are kept in discovery order.
func mergeValue(acc *graph.Projection, v graph.Value, visited map[string]struct{}, next *[]string, maxNodes int) (stop bool, err error) {
	switch val := v.(type) {
	case graph.Node:
		if !acc.ContainsNode(val.ID) && acc.NodeCount() >= maxNodes {
			return true, nil
		}
		if err := acc.AddNode(val); err != nil {
			return false, err
		}
		if _, seen := visited[val.ID]; !seen {
			visited[val.ID] = struct{}{}
			*next = append(*next, val.ID)
		}
		return false, nil

	case graph.Relationship:
		return false, acc.AddRelationship(val)

	case graph.List:
		for _, item := range val.Values {
			stop, err := mergeValue(acc, item, visited, next, maxNodes)
			if stop || err != nil {
				return stop, err
			}
		}
		return false, nil

	case graph.Map:
		for _, item := range val.Values {
			stop, err := mergeValue(acc, item, visited, next, maxNodes)
			if stop || err != nil {
				return stop, err
			}
		}
		return false, nil

	case graph.Scalar, nil:
		return false, nil

	default:
		return false, fmt.Errorf("%w: %T", graph.ErrUnknownValue, v)
	}
}
