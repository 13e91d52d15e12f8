package slack

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

func TestPostMonotonicPerChannelTS(t *testing.T) {
	tw := New(bus.New())
	m1, err := tw.Post("#eng", "sam", "hello", "")
	if err != nil {
		t.Fatalf("post 1: %v", err)
	}
	m2, err := tw.Post("#eng", "sam", "world", "")
	if err != nil {
		t.Fatalf("post 2: %v", err)
	}
	if m1["ts"].(string) != "1" || m2["ts"].(string) != "2" {
		t.Fatalf("ts sequence = %v, %v; want 1, 2", m1["ts"], m2["ts"])
	}

	other, err := tw.Post("#random", "jane", "hi", "")
	if err != nil {
		t.Fatalf("post other channel: %v", err)
	}
	if other["ts"].(string) != "1" {
		t.Fatalf("per-channel ts should restart, got %v", other["ts"])
	}
}

func TestReactAppendsToReactionList(t *testing.T) {
	tw := New(bus.New())
	posted, _ := tw.Post("#eng", "sam", "hello", "")
	ts := posted["ts"].(string)
	reacted, err := tw.React("#eng", ts, "+1")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	reactions := reacted["reactions"].([]string)
	if len(reactions) != 1 || reactions[0] != "+1" {
		t.Fatalf("reactions = %v, want [+1]", reactions)
	}
}

func TestReactUnknownMessage(t *testing.T) {
	tw := New(bus.New())
	if _, err := tw.React("#eng", "999", "+1"); err == nil {
		t.Fatal("expected unknown_message error")
	}
}

func TestHistoryFiltersByThread(t *testing.T) {
	tw := New(bus.New())
	root, _ := tw.Post("#eng", "sam", "root message", "")
	rootTS := root["ts"].(string)
	tw.Post("#eng", "jane", "reply in thread", rootTS)
	tw.Post("#eng", "sam", "unrelated top-level message", "")

	out, err := tw.History(router.ListArgs{SortDir: "asc", Legacy: true}, "#eng", rootTS)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	rows := out["messages"].([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 threaded reply, got %d", len(rows))
	}
}
