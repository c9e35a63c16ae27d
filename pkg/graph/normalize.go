package graph

import "fmt"

// GraphNode is the wire-level node shape.
//
// Categories preserves the database's label-assignment order but has set
// semantics: a label appears at most once.
type GraphNode struct {
	ID         string         `json:"id"`
	Categories []string       `json:"categories"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is the wire-level edge shape. Source/Target reference GraphNode
// IDs; an edge is emitted even when its endpoints are absent from the
// accompanying node collection.
type GraphEdge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// NormalizeNode converts a raw Node into its wire shape. Labels are
// deduplicated preserving first-occurrence order.
func NormalizeNode(n Node) (GraphNode, error) {
	if n.ID == "" {
		return GraphNode{}, fmt.Errorf("node: %w", ErrMissingIdentity)
	}

	categories := make([]string, 0, len(n.Labels))
	seen := make(map[string]struct{}, len(n.Labels))
	for _, label := range n.Labels {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		categories = append(categories, label)
	}

	props := n.Properties
	if props == nil {
		props = map[string]any{}
	}

	return GraphNode{
		ID:         n.ID,
		Categories: categories,
		Properties: props,
	}, nil
}

// NormalizeRelationship converts a raw Relationship into its wire shape.
// A relationship missing its own identity or either endpoint identity is
// malformed input and fails rather than producing a partially-normalized edge.
func NormalizeRelationship(r Relationship) (GraphEdge, error) {
	if r.ID == "" {
		return GraphEdge{}, fmt.Errorf("relationship: %w", ErrMissingIdentity)
	}
	if r.StartID == "" || r.EndID == "" {
		return GraphEdge{}, fmt.Errorf("relationship %q endpoint: %w", r.ID, ErrMissingIdentity)
	}

	props := r.Properties
	if props == nil {
		props = map[string]any{}
	}

	return GraphEdge{
		ID:         r.ID,
		Source:     r.StartID,
		Target:     r.EndID,
		Type:       r.Type,
		Properties: props,
	}, nil
}
