package graph

import "fmt"

// ProjectionResult is the wire-level response body for graph-shaped results:
// ordered, deduplicated node and edge collections plus a truncation flag.
type ProjectionResult struct {
	Nodes            []GraphNode `json:"nodes"`
	Edges            []GraphEdge `json:"edges"`
	TruncatedByLimit bool        `json:"truncatedByLimit"`
}

// Projection accumulates normalized entities across one or more row streams,
// deduplicating by id with first-occurrence-wins semantics.
//
// First-occurrence-wins assumes a single query execution observes a
// consistent snapshot, so repeated occurrences of an id carry identical data
// and later ones can be discarded without comparison.
//
// A Projection is owned by a single request and is not safe for concurrent
// writers.
type Projection struct {
	nodes    []GraphNode
	edges    []GraphEdge
	nodeSeen map[string]struct{}
	edgeSeen map[string]struct{}

	truncated bool
}

// NewProjection returns an empty accumulator.
func NewProjection() *Projection {
	return &Projection{
		nodeSeen: make(map[string]struct{}),
		edgeSeen: make(map[string]struct{}),
	}
}

// Project consumes a row sequence in a single pass and returns the
// deduplicated projection. limitHintApplied is supplied by the caller from
// out-of-band knowledge (a LIMIT clause in the query text): the row count
// alone cannot distinguish "cut off by the limit" from "exactly this many
// matches".
func Project(rows []Row, limitHintApplied bool) (ProjectionResult, error) {
	p := NewProjection()
	for _, row := range rows {
		if err := p.AddRow(row); err != nil {
			return ProjectionResult{}, err
		}
	}
	if limitHintApplied {
		p.MarkTruncated()
	}
	return p.Result(), nil
}

// AddRow projects every entity found in the row, in column order.
func (p *Projection) AddRow(row Row) error {
	for _, key := range row.Keys {
		if err := p.AddValue(row.Values[key]); err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
	}
	return nil
}

// AddValue projects one cell value. Entities nested inside lists and maps are
// projected recursively; scalars contribute nothing. A Value outside the
// closed union fails the request rather than being coerced into a
// plausible-looking entity.
func (p *Projection) AddValue(v Value) error {
	switch val := v.(type) {
	case Node:
		return p.AddNode(val)
	case Relationship:
		return p.AddRelationship(val)
	case List:
		for _, item := range val.Values {
			if err := p.AddValue(item); err != nil {
				return err
			}
		}
		return nil
	case Map:
		for _, item := range val.Values {
			if err := p.AddValue(item); err != nil {
				return err
			}
		}
		return nil
	case Scalar:
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownValue, v)
	}
}

// AddNode normalizes and upserts a node. Later occurrences of an already-seen
// id are discarded.
func (p *Projection) AddNode(n Node) error {
	gn, err := NormalizeNode(n)
	if err != nil {
		return err
	}
	if _, dup := p.nodeSeen[gn.ID]; dup {
		return nil
	}
	p.nodeSeen[gn.ID] = struct{}{}
	p.nodes = append(p.nodes, gn)
	return nil
}

// AddRelationship normalizes and upserts an edge, first occurrence wins.
// The edge is kept even when its endpoints never appear as nodes anywhere in
// the stream; consumers treat that as a valid, degraded result shape.
func (p *Projection) AddRelationship(r Relationship) error {
	ge, err := NormalizeRelationship(r)
	if err != nil {
		return err
	}
	if _, dup := p.edgeSeen[ge.ID]; dup {
		return nil
	}
	p.edgeSeen[ge.ID] = struct{}{}
	p.edges = append(p.edges, ge)
	return nil
}

// ContainsNode reports whether a node with the given id has been projected.
func (p *Projection) ContainsNode(id string) bool {
	_, ok := p.nodeSeen[id]
	return ok
}

// NodeCount returns the number of distinct nodes projected so far.
func (p *Projection) NodeCount() int {
	return len(p.nodes)
}

// MarkTruncated records that the result is incomplete relative to what an
// unconstrained query or expansion would have returned.
func (p *Projection) MarkTruncated() {
	p.truncated = true
}

// Result snapshots the accumulated collections in first-seen order. Nodes and
// Edges are never nil so the wire shape always carries arrays.
func (p *Projection) Result() ProjectionResult {
	nodes := p.nodes
	if nodes == nil {
		nodes = []GraphNode{}
	}
	edges := p.edges
	if edges == nil {
		edges = []GraphEdge{}
	}
	return ProjectionResult{
		Nodes:            nodes,
		Edges:            edges,
		TruncatedByLimit: p.truncated,
	}
}
