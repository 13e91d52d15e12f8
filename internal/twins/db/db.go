// Package db implements the relational Database twin (spec.md §4.3.11):
// named tables of loosely-typed rows queryable through a small filter DSL.
// Rows are persisted through database/sql against modernc.org/sqlite, one
// physical table per logical table, each row stored as a JSON document
// alongside its extracted key so the twin's dynamic, scenario-defined
// schemas don't have to be declared up front.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/vei/internal/router"
)

// Seed is a named table of pre-populated rows.
type Seed struct {
	Table string           `json:"table"`
	Rows  []map[string]any `json:"rows,omitempty"`
}

// DefaultSeeds mirrors the original implementation's default fixture tables
// (database.py: _default_tables) so a scenario with no explicit seed data
// still exercises procurement/CRM/approval workflows end to end.
func DefaultSeeds() []Seed {
	return []Seed{
		{Table: "procurement_orders", Rows: []map[string]any{
			{"id": "PO-1001", "vendor": "MacroCompute", "amount_usd": 3199, "status": "PENDING_APPROVAL", "cost_center": "IT-OPS"},
			{"id": "PO-1002", "vendor": "Dell Business", "amount_usd": 2799, "status": "APPROVED", "cost_center": "ENG-PLATFORM"},
		}},
		{Table: "crm_pipeline", Rows: []map[string]any{
			{"id": "OPP-901", "account": "MacroCompute", "stage": "qualification", "amount_usd": 12000, "owner": "sam@macrocompute.example"},
		}},
		{Table: "approval_audit", Rows: []map[string]any{
			{"id": "APR-1", "entity_type": "purchase_order", "entity_id": "PO-1001", "status": "PENDING", "approver": "finance@macrocompute.example"},
		}},
	}
}

// Twin implements bus.Receiver and router.ToolProvider for the "db." prefix.
type Twin struct {
	db *sql.DB
}

// New opens (or creates) the twin's backing store at dsn — typically
// "file::memory:?cache=shared" for a scenario run — and seeds it.
func New(dsn string, seeds []Seed) (*Twin, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // single in-process writer, avoids sqlite lock contention
	t := &Twin{db: sqlDB}
	if err := t.ensureMeta(context.Background()); err != nil {
		return nil, err
	}
	for _, s := range seeds {
		for _, row := range s.Rows {
			if _, err := t.Upsert(s.Table, row, "id"); err != nil {
				return nil, fmt.Errorf("db: seeding %s: %w", s.Table, err)
			}
		}
	}
	return t, nil
}

func (t *Twin) ensureMeta(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vei_tables (name TEXT PRIMARY KEY)`)
	return err
}

func tableName(logical string) string {
	return "vei_tbl_" + strings.ReplaceAll(logical, `"`, "")
}

func (t *Twin) ensureTable(ctx context.Context, logical string) error {
	if _, err := t.db.ExecContext(ctx, `INSERT OR IGNORE INTO vei_tables(name) VALUES (?)`, logical); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (row_key TEXT PRIMARY KEY, doc TEXT NOT NULL)`, tableName(logical))
	_, err := t.db.ExecContext(ctx, stmt)
	return err
}

func (t *Twin) tableExists(ctx context.Context, logical string) (bool, error) {
	var name string
	err := t.db.QueryRowContext(ctx, `SELECT name FROM vei_tables WHERE name = ?`, logical).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *Twin) loadRows(ctx context.Context, logical string) ([]map[string]any, error) {
	exists, err := t.tableExists(ctx, logical)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, router.Errorf("db.table_not_found", "unknown table: %s", logical)
	}
	stmt := fmt.Sprintf(`SELECT doc FROM "%s" ORDER BY row_key`, tableName(logical))
	rows, err := t.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTables returns each known table and its row count.
func (t *Twin) ListTables(args router.ListArgs) (map[string]any, error) {
	ctx := context.Background()
	rows, err := t.db.QueryContext(ctx, `SELECT name FROM vei_tables ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	out := make([]map[string]any, 0, len(tables))
	for _, name := range tables {
		tableRows, err := t.loadRows(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"table": name, "row_count": len(tableRows)})
	}
	if args.Query != "" {
		needle := strings.ToLower(args.Query)
		filtered := out[:0:0]
		for _, row := range out {
			if strings.Contains(strings.ToLower(row["table"].(string)), needle) {
				filtered = append(filtered, row)
			}
		}
		out = filtered
	}
	sortBy := args.SortBy
	if sortBy != "table" && sortBy != "row_count" {
		sortBy = "table"
	}
	router.SortRows(out, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"tables": out}, nil
	}
	page, err := router.PageRows(out, "tables", args.Limit, args.Cursor, "db.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// DescribeTable returns the union of column names observed across a table's rows.
func (t *Twin) DescribeTable(table string) (map[string]any, error) {
	rows, err := t.loadRows(context.Background(), table)
	if err != nil {
		return nil, err
	}
	cols := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			cols[k] = true
		}
	}
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	sort.Strings(names)
	return map[string]any{"table": table, "columns": names, "row_count": len(rows)}, nil
}

// Query filters, sorts, projects, and paginates a table's rows per the
// filter DSL (eq/neq/contains/starts_with/gt/gte/lt/lte/in).
func (t *Twin) Query(table string, filters map[string]any, columns []string, limit, offset int, cursor, sortBy string, descending bool) (map[string]any, error) {
	rows, err := t.loadRows(context.Background(), table)
	if err != nil {
		return nil, err
	}
	if filters != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			if matchesFilters(row, filters) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if sortBy != "" {
		dir := "asc"
		if descending {
			dir = "desc"
		}
		router.SortRows(rows, sortBy, dir)
	}
	total := len(rows)
	start := offset
	if cursor != "" {
		start, err = router.DecodeCursor(cursor, "db.")
		if err != nil {
			return nil, err
		}
	}
	if start < 0 {
		start = 0
	}
	pageLimit := router.NormalizeLimit(&limit)
	end := start + pageLimit
	if end > total {
		end = total
	}
	var sliced []map[string]any
	if start < total {
		sliced = rows[start:end]
	}
	if len(columns) > 0 {
		keep := map[string]bool{}
		for _, c := range columns {
			keep[c] = true
		}
		projected := make([]map[string]any, 0, len(sliced))
		for _, row := range sliced {
			p := map[string]any{}
			for k, v := range row {
				if keep[k] {
					p[k] = v
				}
			}
			projected = append(projected, p)
		}
		sliced = projected
	}
	var nextCursor any
	hasMore := end < total
	if hasMore {
		nextCursor = router.EncodeCursor(end)
	}
	return map[string]any{
		"table": table, "rows": sliced, "count": len(sliced), "total": total,
		"offset": start, "next_cursor": nextCursor, "has_more": hasMore,
	}, nil
}

// Upsert inserts or merges a row into table keyed by key (default "id").
func (t *Twin) Upsert(table string, row map[string]any, key string) (map[string]any, error) {
	ctx := context.Background()
	if err := t.ensureTable(ctx, table); err != nil {
		return nil, err
	}
	if key == "" {
		key = "id"
	}
	existingRows, err := t.loadRows(ctx, table)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{}
	for k, v := range row {
		merged[k] = v
	}
	if _, ok := merged[key]; !ok {
		merged[key] = fmt.Sprintf("%s-%d", strings.ToUpper(table), len(existingRows)+1)
	}
	rowID := merged[key]
	rowKey := fmt.Sprintf("%v", rowID)

	updated := false
	for _, existing := range existingRows {
		if fmt.Sprintf("%v", existing[key]) == rowKey {
			for k, v := range merged {
				existing[k] = v
			}
			merged = existing
			updated = true
			break
		}
	}
	doc, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`INSERT INTO "%s" (row_key, doc) VALUES (?, ?)
		ON CONFLICT(row_key) DO UPDATE SET doc = excluded.doc`, tableName(table))
	if _, err := t.db.ExecContext(ctx, stmt, rowKey, string(doc)); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "table": table, "key": key, "id": rowID, "updated": updated}, nil
}

func matchesFilters(row map[string]any, filters map[string]any) bool {
	for field, expected := range filters {
		value := row[field]
		spec, isMap := expected.(map[string]any)
		if !isMap {
			if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", expected) && value != expected {
				return false
			}
			continue
		}
		if eq, ok := spec["eq"]; ok && !valuesEqual(value, eq) {
			return false
		}
		if neq, ok := spec["neq"]; ok && valuesEqual(value, neq) {
			return false
		}
		if contains, ok := spec["contains"]; ok {
			needle := strings.ToLower(fmt.Sprintf("%v", contains))
			if !strings.Contains(strings.ToLower(fmt.Sprintf("%v", value)), needle) {
				return false
			}
		}
		if prefix, ok := spec["starts_with"]; ok {
			p := strings.ToLower(fmt.Sprintf("%v", prefix))
			if !strings.HasPrefix(strings.ToLower(fmt.Sprintf("%v", value)), p) {
				return false
			}
		}
		if gt, ok := spec["gt"]; ok && !compareNumeric(value, gt, "gt") {
			return false
		}
		if gte, ok := spec["gte"]; ok && !compareNumeric(value, gte, "gte") {
			return false
		}
		if lt, ok := spec["lt"]; ok && !compareNumeric(value, lt, "lt") {
			return false
		}
		if lte, ok := spec["lte"]; ok && !compareNumeric(value, lte, "lte") {
			return false
		}
		if in, ok := spec["in"]; ok {
			items, ok := in.([]any)
			if ok {
				found := false
				for _, item := range items {
					if valuesEqual(value, item) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareNumeric(actual, expected any, op string) bool {
	left, ok1 := toFloat(actual)
	right, ok2 := toFloat(expected)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case "gt":
		return left > right
	case "gte":
		return left >= right
	case "lt":
		return left < right
	case "lte":
		return left <= right
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Deliver applies a scheduled database event: upsert (default) or query.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	if op == "" {
		op = "upsert"
	}
	switch op {
	case "upsert":
		table, _ := payload["table"].(string)
		if table == "" {
			table = "events"
		}
		row, ok := payload["row"].(map[string]any)
		if !ok {
			return nil, router.NewError("db.invalid_event", "database upsert delivery requires row")
		}
		key, _ := payload["key"].(string)
		return t.Upsert(table, row, key)
	case "query":
		table, _ := payload["table"].(string)
		filters, _ := payload["filters"].(map[string]any)
		columns, _ := router.ArgStringSlice(payload["columns"])
		limit := 20
		if v, ok := router.ArgInt(payload["limit"]); ok {
			limit = v
		}
		offset := 0
		if v, ok := router.ArgInt(payload["offset"]); ok {
			offset = v
		}
		cursor, _ := payload["cursor"].(string)
		sortBy, _ := payload["sort_by"].(string)
		descending, _ := payload["descending"].(bool)
		return t.Query(table, filters, columns, limit, offset, cursor, sortBy, descending)
	default:
		return nil, router.Errorf("db.invalid_event", "unsupported database delivery op: %s", op)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "db.list_tables", Description: "List known tables.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "db.describe_table", Description: "Describe a table's columns.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "db.query", Description: "Query a table with the filter DSL.", DefaultLatencyMs: 140, LatencyJitterMs: 40},
		{Name: "db.upsert", Description: "Insert or merge a row.", SideEffects: []string{"db_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("table", "row")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"db."} }

// State implements router.ToolProvider for state_snapshot's include_state
// digest: a row count per logical table, reusing ListTables's bookkeeping.
func (t *Twin) State() map[string]any {
	ctx := context.Background()
	rows, err := t.db.QueryContext(ctx, `SELECT name FROM vei_tables ORDER BY name`)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	defer rows.Close()
	counts := map[string]any{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return map[string]any{"error": err.Error()}
		}
		tableRows, err := t.loadRows(ctx, name)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		counts[name] = len(tableRows)
	}
	return map[string]any{"tables": counts}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "db.list_tables":
		return t.ListTables(router.ListArgsFromMap(args))
	case "db.describe_table":
		table, _ := args["table"].(string)
		return t.DescribeTable(table)
	case "db.query":
		table, _ := args["table"].(string)
		filters, _ := args["filters"].(map[string]any)
		columns, _ := router.ArgStringSlice(args["columns"])
		limit := 20
		if v, ok := router.ArgInt(args["limit"]); ok {
			limit = v
		}
		offset := 0
		if v, ok := router.ArgInt(args["offset"]); ok {
			offset = v
		}
		cursor, _ := args["cursor"].(string)
		sortBy, _ := args["sort_by"].(string)
		descending, _ := args["descending"].(bool)
		return t.Query(table, filters, columns, limit, offset, cursor, sortBy, descending)
	case "db.upsert":
		table, _ := args["table"].(string)
		row, _ := args["row"].(map[string]any)
		key, _ := args["key"].(string)
		return t.Upsert(table, row, key)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}

// Close releases the backing database handle.
func (t *Twin) Close() error { return t.db.Close() }
