package router

import (
	"strconv"
	"strings"
)

// DefaultLimit and MaxLimit are the common list-pagination bounds shared by
// every twin (spec.md §4.3).
const (
	DefaultLimit = 25
	MaxLimit     = 200
)

// NormalizeLimit clamps an optional limit into [1, MaxLimit], defaulting to
// DefaultLimit when absent.
func NormalizeLimit(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	if *limit < 1 {
		return 1
	}
	if *limit > MaxLimit {
		return MaxLimit
	}
	return *limit
}

// DecodeCursor parses an opaque "ofs:<int>" cursor, where <int> must be one
// or more ASCII digits (no sign, no leading "+"/"-"). An empty cursor
// decodes to offset 0. Any other shape is invalid_cursor (scoped by the
// caller via the returned error's Code prefix convention, e.g.
// "db.invalid_cursor").
func DecodeCursor(cursor string, codePrefix string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	digits, ok := strings.CutPrefix(cursor, "ofs:")
	if !ok || digits == "" {
		return 0, Errorf(codePrefix+"invalid_cursor", "invalid cursor: %s", cursor)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, Errorf(codePrefix+"invalid_cursor", "invalid cursor: %s", cursor)
		}
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, Errorf(codePrefix+"invalid_cursor", "invalid cursor: %s", cursor)
	}
	return value, nil
}

// EncodeCursor renders an offset as the opaque cursor form.
func EncodeCursor(offset int) string {
	if offset < 0 {
		offset = 0
	}
	return "ofs:" + strconv.Itoa(offset)
}

// Page is the uniform paginated-list envelope (spec.md §4.3). RowsKey names
// the field under which rows are attached when the twin marshals this to a
// map (e.g. "users", "events", "deals").
type Page struct {
	RowsKey    string
	Rows       []map[string]any
	Count      int
	Total      int
	NextCursor string
	HasMore    bool
}

// ToMap renders the Page as the wire-shape map described in spec.md §4.3:
// {rows_key: rows, count, total, next_cursor?, has_more}.
func (p Page) ToMap() map[string]any {
	out := map[string]any{
		p.RowsKey: p.Rows,
		"count":   p.Count,
		"total":   p.Total,
		"has_more": p.HasMore,
	}
	if p.NextCursor != "" {
		out["next_cursor"] = p.NextCursor
	} else {
		out["next_cursor"] = nil
	}
	return out
}

// PageRows slices an already-filtered/sorted row set starting at the
// decoded cursor offset, for exactly `limit` rows, and computes the
// next_cursor/has_more fields. rowsKey names the wire field for the slice.
func PageRows(rows []map[string]any, rowsKey string, limit *int, cursor string, codePrefix string) (Page, error) {
	start, err := DecodeCursor(cursor, codePrefix)
	if err != nil {
		return Page{}, err
	}
	pageLimit := NormalizeLimit(limit)
	end := start + pageLimit
	if end > len(rows) {
		end = len(rows)
	}
	if start > len(rows) {
		start = len(rows)
	}
	sliced := rows[start:end]
	var next string
	hasMore := end < len(rows)
	if hasMore {
		next = EncodeCursor(end)
	}
	return Page{
		RowsKey:    rowsKey,
		Rows:       sliced,
		Count:      len(sliced),
		Total:      len(rows),
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}
