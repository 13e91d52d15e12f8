package docs

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

func TestCreateReadUpdateVersioning(t *testing.T) {
	b := bus.New()
	tw := New(b, nil)

	created, err := tw.Create("Runbook", "steps...", []string{"ops"}, "sam")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	docID := created["doc_id"].(string)

	read, err := tw.Read(docID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if read["version"].(int) != 1 {
		t.Fatalf("version = %v, want 1", read["version"])
	}

	newBody := "steps v2..."
	if _, err := tw.Update(docID, nil, &newBody, nil, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	read, _ = tw.Read(docID)
	if read["version"].(int) != 2 {
		t.Fatalf("version after update = %v, want 2", read["version"])
	}
	if read["body"].(string) != newBody {
		t.Fatalf("body = %v, want %v", read["body"], newBody)
	}
}

func TestReadUnknownDocument(t *testing.T) {
	tw := New(bus.New(), nil)
	if _, err := tw.Read("DOC-404"); err == nil {
		t.Fatal("expected unknown_document error")
	}
}

func TestDeliverIDHeuristicUpdatesWhenOpAbsent(t *testing.T) {
	tw := New(bus.New(), []Seed{{DocID: "DOC-1", Title: "Existing", Body: "body"}})
	// doc_id present but op is explicitly absent -> heuristic path updates.
	if _, err := tw.Deliver(map[string]any{"doc_id": "DOC-1", "title": "Renamed"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	read, _ := tw.Read("DOC-1")
	if read["title"].(string) != "Renamed" {
		t.Fatalf("title = %v, want Renamed", read["title"])
	}
}

func TestPaginationTotality(t *testing.T) {
	tw := New(bus.New(), nil)
	for i := 0; i < 5; i++ {
		if _, err := tw.Create("T", "B", nil, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	seen := map[string]bool{}
	cursor := ""
	limit := 2
	for {
		out, err := tw.List(router.ListArgs{SortDir: "asc", Limit: &limit, Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		rows := out["docs"].([]map[string]any)
		for _, r := range rows {
			seen[r["doc_id"].(string)] = true
		}
		next, _ := out["next_cursor"].(string)
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != 5 {
		t.Fatalf("saw %d distinct docs, want 5", len(seen))
	}
}
