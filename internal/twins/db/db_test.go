package db

import "testing"

func newTestTwin(t *testing.T) *Twin {
	t.Helper()
	tw, err := New("file::memory:?cache=shared&_db_test="+t.Name(), DefaultSeeds())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { tw.Close() })
	return tw
}

func TestDefaultSeedsQueryable(t *testing.T) {
	tw := newTestTwin(t)
	out, err := tw.Query("procurement_orders", nil, nil, 20, 0, "", "", false)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out["total"].(int) != 2 {
		t.Fatalf("total = %v, want 2", out["total"])
	}
}

func TestFilterDSLOperators(t *testing.T) {
	tw := newTestTwin(t)
	filters := map[string]any{"amount_usd": map[string]any{"gt": 3000}}
	out, err := tw.Query("procurement_orders", filters, nil, 20, 0, "", "", false)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	rows := out["rows"].([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != "PO-1001" {
		t.Fatalf("gt filter rows = %v, want only PO-1001", rows)
	}

	filters = map[string]any{"vendor": map[string]any{"contains": "dell"}}
	out, err = tw.Query("procurement_orders", filters, nil, 20, 0, "", "", false)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	rows = out["rows"].([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != "PO-1002" {
		t.Fatalf("contains filter rows = %v, want only PO-1002", rows)
	}
}

func TestUpsertCreateThenUpdate(t *testing.T) {
	tw := newTestTwin(t)
	res, err := tw.Upsert("widgets", map[string]any{"id": "W-1", "qty": 5}, "id")
	if err != nil {
		t.Fatalf("upsert create: %v", err)
	}
	if res["updated"].(bool) != false {
		t.Fatal("first upsert should not be marked updated")
	}
	res, err = tw.Upsert("widgets", map[string]any{"id": "W-1", "qty": 9}, "id")
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if res["updated"].(bool) != true {
		t.Fatal("second upsert on same key should be marked updated")
	}
	out, err := tw.Query("widgets", nil, nil, 20, 0, "", "", false)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	rows := out["rows"].([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("expected single merged row, got %d", len(rows))
	}
}

func TestUnknownTableError(t *testing.T) {
	tw := newTestTwin(t)
	if _, err := tw.Query("nonexistent", nil, nil, 20, 0, "", "", false); err == nil {
		t.Fatal("expected db.table_not_found")
	}
}

func TestDescribeTableColumns(t *testing.T) {
	tw := newTestTwin(t)
	out, err := tw.DescribeTable("crm_pipeline")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	cols := out["columns"].([]string)
	found := map[string]bool{}
	for _, c := range cols {
		found[c] = true
	}
	for _, want := range []string{"id", "account", "stage", "amount_usd", "owner"} {
		if !found[want] {
			t.Fatalf("columns missing %s: %v", want, cols)
		}
	}
}
