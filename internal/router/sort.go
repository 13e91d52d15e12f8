package router

import (
	"fmt"
	"sort"
)

// ListArgs is the common shape accepted by every twin list-style operation
// (spec.md §4.3): {query?, sort_by?, sort_dir, limit?, cursor?, legacy?}.
// Legacy replaces the original's argument-presence sniffing (SPEC_FULL.md §4,
// Open Question 2): callers that want the plain-array compatibility shape
// must set Legacy explicitly.
type ListArgs struct {
	Query   string
	SortBy  string
	SortDir string
	Limit   *int
	Cursor  string
	Legacy  bool
}

// SortableKey renders a value into a key comparable across rows regardless
// of its dynamic type (nil sorts first, numbers sort numerically via a
// fixed-width string, everything else falls back to its string form).
func SortableKey(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return fmt.Sprintf("%020d", val)
	case int64:
		return fmt.Sprintf("%020d", val)
	case float64:
		return fmt.Sprintf("%020.6f", val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ListArgsFromMap extracts the common list-args shape out of a raw args map,
// for use by ToolProvider.Call implementations.
func ListArgsFromMap(args map[string]any) ListArgs {
	la := ListArgs{SortDir: "asc"}
	if v, ok := args["query"].(string); ok {
		la.Query = v
	}
	if v, ok := args["sort_by"].(string); ok {
		la.SortBy = v
	}
	if v, ok := args["sort_dir"].(string); ok {
		la.SortDir = v
	}
	if v, ok := ArgInt(args["limit"]); ok {
		la.Limit = &v
	}
	if v, ok := args["cursor"].(string); ok {
		la.Cursor = v
	}
	if v, ok := args["legacy"].(bool); ok {
		la.Legacy = v
	}
	return la
}

// SortRows sorts rows in place by the given field name, ascending unless
// sortDir == "desc". The sort is stable so ties preserve insertion order.
func SortRows(rows []map[string]any, field string, sortDir string) {
	if field == "" {
		return
	}
	desc := sortDir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := SortableKey(rows[i][field]), SortableKey(rows[j][field])
		if desc {
			return a > b
		}
		return a < b
	})
}
