// Package graph converts raw driver result values into the deduplicated
// node/edge wire shape consumed by graph-visualization clients.
//
// The package is split into three layers:
//
//   - Value: a closed tagged union of everything a query cell can hold
//     (Node | Relationship | List | Map | Scalar). The executor converts
//     driver records into Values at the boundary; anything else reaching
//     this package is an invariant violation, not a coercible shape.
//   - Normalization: Node/Relationship → GraphNode/GraphEdge wire entities,
//     with identities as opaque strings and label order preserved.
//   - Projection: a single pass over result rows that deduplicates entities
//     by id into ordered node/edge collections.
package graph

import "errors"

// Errors reported by normalization and projection.
var (
	ErrMissingIdentity = errors.New("entity missing identity")
	ErrUnknownValue    = errors.New("unknown result value type")
)

// Value is one cell of a query result row.
//
// The set of implementations is closed: Node, Relationship, List, Map, and
// Scalar. Exhaustive switches over Value must treat any other implementation
// as a request-fatal invariant violation (ErrUnknownValue).
type Value interface {
	isValue()
}

// Node is a raw graph node as returned by the driver, identity already in
// string wire form. Identities are opaque: stable within one database
// instance, never arithmetic, never compared across databases.
type Node struct {
	ID         string
	Labels     []string
	Properties map[string]any
}

// Relationship is a raw graph relationship. StartID/EndID reference Node IDs;
// the referenced nodes may or may not appear elsewhere in the same result.
type Relationship struct {
	ID         string
	Type       string
	StartID    string
	EndID      string
	Properties map[string]any
}

// List holds an ordered collection value (e.g. collect(n)). Entities nested
// inside lists are projected like top-level entities.
type List struct {
	Values []Value
}

// Map holds a map value. Entities nested inside maps are projected like
// top-level entities.
type Map struct {
	Values map[string]Value
}

// Scalar holds a terminal non-entity value: number, string, bool, nil, or a
// temporal value already rendered JSON-safe by the executor. Scalars
// contribute nothing to a projection.
type Scalar struct {
	Value any
}

func (Node) isValue()         {}
func (Relationship) isValue() {}
func (List) isValue()         {}
func (Map) isValue()          {}
func (Scalar) isValue()       {}

// Row is one result record: column names in result order plus the value for
// each column. Keys order is what makes projection deterministic; map
// iteration alone would not be.
type Row struct {
	Keys   []string
	Values map[string]Value
}

// NewRow builds a Row from ordered key/value pairs.
func NewRow(keys []string, values map[string]Value) Row {
	return Row{Keys: keys, Values: values}
}
