package expand

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// fakeEdge is one directed edge in the fixture graph.
type fakeEdge struct {
	id, from, to string
}

// fakeRunner serves traversal queries from an in-memory adjacency list,
// interpreting the direction encoded in the query pattern.
type fakeRunner struct {
	edges []fakeEdge
	calls int

	failAtCall int
	failErr    error
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) ([]graph.Row, error) {
	f.calls++
	if f.failAtCall > 0 && f.calls >= f.failAtCall {
		return nil, f.failErr
	}

	ids := map[string]struct{}{}
	for _, id := range params["ids"].([]string) {
		ids[id] = struct{}{}
	}

	outgoing := strings.Contains(query, ")-[r]->(")
	incoming := strings.Contains(query, ")<-[r]-(")

	node := func(id string) graph.Node {
		return graph.Node{ID: id, Labels: []string{"Person"}, Properties: map[string]any{}}
	}

	var rows []graph.Row
	appendRow := func(n, m string, e fakeEdge) {
		rows = append(rows, graph.Row{
			Keys: []string{"n", "r", "m"},
			Values: map[string]graph.Value{
				"n": node(n),
				"r": graph.Relationship{ID: e.id, Type: "KNOWS", StartID: e.from, EndID: e.to},
				"m": node(m),
			},
		})
	}

	for _, e := range f.edges {
		_, fromVisited := ids[e.from]
		_, toVisited := ids[e.to]
		switch {
		case outgoing:
			if fromVisited {
				appendRow(e.from, e.to, e)
			}
		case incoming:
			if toVisited {
				appendRow(e.to, e.from, e)
			}
		default: // both
			if fromVisited {
				appendRow(e.from, e.to, e)
			} else if toVisited {
				appendRow(e.to, e.from, e)
			}
		}
	}
	return rows, nil
}

func nodeIDs(r graph.ProjectionResult) []string {
	ids := make([]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func edgeIDs(r graph.ProjectionResult) []string {
	ids := make([]string, 0, len(r.Edges))
	for _, e := range r.Edges {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestExpand_BudgetExhaustedMidLevel(t *testing.T) {
	// Seed "1" with three neighbors and maxNodes=2: only one new node fits
	// beside the seed, the result is truncated, and level 2 is never issued.
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"},
		{"e13", "1", "3"},
		{"e14", "1", "4"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 2, Direction: DirectionBoth, MaxNodes: 2}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.Len(t, result.Nodes, 2)
	assert.True(t, result.TruncatedByLimit)
	assert.Equal(t, 1, runner.calls, "level 2 query must never be issued")
}

func TestExpand_BudgetInvariant(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, {"e23", "2", "3"}, {"e34", "3", "4"}, {"e45", "4", "5"},
	}}

	for _, maxNodes := range []int{1, 2, 3, 10} {
		r := &fakeRunner{edges: runner.edges}
		spec := Spec{SeedIDs: []string{"1"}, Depth: 4, Direction: DirectionBoth, MaxNodes: maxNodes}
		result, err := Expand(context.Background(), spec, r)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Nodes), maxNodes, "maxNodes=%d", maxNodes)
	}
}

func TestExpand_DepthOne(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, {"e23", "2", "3"}, {"e34", "3", "4"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, nodeIDs(result))
	assert.Equal(t, []string{"e12"}, edgeIDs(result))
	assert.False(t, result.TruncatedByLimit)
	assert.Equal(t, 1, runner.calls)
}

func TestExpand_DepthTwo(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, {"e23", "2", "3"}, {"e34", "3", "4"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 2, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2", "3"}, nodeIDs(result))
	assert.ElementsMatch(t, []string{"e12", "e23"}, edgeIDs(result))
}

func TestExpand_DirectionOut(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, // out from seed
		{"e31", "3", "1"}, // in toward seed, must not be followed
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionOut, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, nodeIDs(result))
	assert.Equal(t, []string{"e12"}, edgeIDs(result))
}

func TestExpand_DirectionIn(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"},
		{"e31", "3", "1"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionIn, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "3"}, nodeIDs(result))
	assert.Equal(t, []string{"e31"}, edgeIDs(result))
}

func TestExpand_EdgeBetweenVisitedNodesIncluded(t *testing.T) {
	// Triangle: at level 2 the edge 2-3 adds no frontier node but belongs to
	// the induced subgraph.
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, {"e13", "1", "3"}, {"e23", "2", "3"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 2, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2", "3"}, nodeIDs(result))
	assert.ElementsMatch(t, []string{"e12", "e13", "e23"}, edgeIDs(result))
	assert.False(t, result.TruncatedByLimit)
}

func TestExpand_EmptyFrontierTerminatesEarly(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{{"e12", "1", "2"}}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 10, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, nodeIDs(result))
	assert.False(t, result.TruncatedByLimit)
	assert.Less(t, runner.calls, 10, "traversal must stop once the frontier is empty")
}

func TestExpand_CyclicGraphTerminates(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{
		{"e12", "1", "2"}, {"e21", "2", "1"},
	}}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 10, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, nodeIDs(result))
	assert.ElementsMatch(t, []string{"e12", "e21"}, edgeIDs(result))
}

func TestExpand_ExecutorFailureDiscardsEverything(t *testing.T) {
	boom := errors.New("connection reset")
	runner := &fakeRunner{
		edges:      []fakeEdge{{"e12", "1", "2"}, {"e23", "2", "3"}},
		failAtCall: 2,
		failErr:    boom,
	}

	spec := Spec{SeedIDs: []string{"1"}, Depth: 3, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, result.Nodes, "no partial results on failure")
	assert.Empty(t, result.Edges)
}

func TestExpand_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{edges: []fakeEdge{{"e12", "1", "2"}}}
	spec := Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionBoth, MaxNodes: 50}

	_, err := Expand(ctx, spec, runner)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runner.calls)
}

func TestExpand_DuplicateSeedsCollapsed(t *testing.T) {
	runner := &fakeRunner{edges: []fakeEdge{{"e12", "1", "2"}}}

	spec := Spec{SeedIDs: []string{"1", "1", "1"}, Depth: 1, Direction: DirectionBoth, MaxNodes: 50}
	result, err := Expand(context.Background(), spec, runner)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, nodeIDs(result))
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"no seeds", Spec{Depth: 1, Direction: DirectionBoth, MaxNodes: 1}, ErrNoSeeds},
		{"zero depth", Spec{SeedIDs: []string{"1"}, Direction: DirectionBoth, MaxNodes: 1}, ErrInvalidDepth},
		{"negative depth", Spec{SeedIDs: []string{"1"}, Depth: -1, Direction: DirectionBoth, MaxNodes: 1}, ErrInvalidDepth},
		{"zero maxNodes", Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionBoth}, ErrInvalidMaxNodes},
		{"bad direction", Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: "sideways", MaxNodes: 1}, ErrInvalidDirection},
		{"valid", Spec{SeedIDs: []string{"1"}, Depth: 1, Direction: DirectionIn, MaxNodes: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSpec_ApplyDefaults(t *testing.T) {
	s := Spec{SeedIDs: []string{"1"}}
	s.ApplyDefaults()

	assert.Equal(t, DefaultDepth, s.Depth)
	assert.Equal(t, DirectionBoth, s.Direction)
	assert.Equal(t, DefaultMaxNodes, s.MaxNodes)
}
