package neoexec

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// recordToRow converts one driver record into a graph.Row, preserving the
// record's column order. Element ids become opaque strings here, at the
// driver boundary, and are never treated as numbers again.
func recordToRow(rec *db.Record) (graph.Row, error) {
	values := make(map[string]graph.Value, len(rec.Keys))
	for i, key := range rec.Keys {
		values[key] = convertValue(rec.Values[i])
	}
	return graph.Row{Keys: rec.Keys, Values: values}, nil
}

// convertValue maps a driver value onto the closed graph.Value union.
// Entity containers (paths, lists, maps) are converted recursively so
// entities nested in collect() results and map projections still project.
func convertValue(v any) graph.Value {
	switch val := v.(type) {
	case dbtype.Node:
		return graph.Node{
			ID:         val.ElementId,
			Labels:     val.Labels,
			Properties: jsonSafeMap(val.Props),
		}

	case dbtype.Relationship:
		return graph.Relationship{
			ID:         val.ElementId,
			Type:       val.Type,
			StartID:    val.StartElementId,
			EndID:      val.EndElementId,
			Properties: jsonSafeMap(val.Props),
		}

	case dbtype.Path:
		items := make([]graph.Value, 0, len(val.Nodes)+len(val.Relationships))
		for _, n := range val.Nodes {
			items = append(items, convertValue(n))
		}
		for _, r := range val.Relationships {
			items = append(items, convertValue(r))
		}
		return graph.List{Values: items}

	case []any:
		items := make([]graph.Value, len(val))
		for i, item := range val {
			items[i] = convertValue(item)
		}
		return graph.List{Values: items}

	case map[string]any:
		entries := make(map[string]graph.Value, len(val))
		for k, item := range val {
			entries[k] = convertValue(item)
		}
		return graph.Map{Values: entries}

	default:
		return graph.Scalar{Value: jsonSafe(v)}
	}
}

// jsonSafe renders driver scalar types into JSON-encodable values. Temporal
// and spatial types become their canonical string forms.
func jsonSafe(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case dbtype.Date:
		return val.String()
	case dbtype.LocalTime:
		return val.String()
	case dbtype.LocalDateTime:
		return val.String()
	case dbtype.Time:
		return val.String()
	case dbtype.Duration:
		return val.String()
	case dbtype.Point2D:
		return val.String()
	case dbtype.Point3D:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	case map[string]any:
		return jsonSafeMap(val)
	default:
		return v
	}
}

// jsonSafeMap renders a property map JSON-safe, recursively.
func jsonSafeMap(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = jsonSafe(v)
	}
	return out
}
