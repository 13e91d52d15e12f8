package tickets

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
)

func TestLifecycleS2(t *testing.T) {
	tw := New(bus.New())
	created, err := tw.Create("Fix login bug", "desc", "sam", "P2", "high", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created["ticket_id"].(string)

	for _, next := range []Status{StatusInProgress, StatusResolved, StatusClosed} {
		if _, err := tw.Transition(id, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	if _, err := tw.Transition(id, StatusBlocked); err == nil {
		t.Fatal("expected invalid_transition from closed to blocked")
	}
}

func TestNoTraceOutsideTransitionTable(t *testing.T) {
	tw := New(bus.New())
	created, _ := tw.Create("T", "", "", "", "", nil)
	id := created["ticket_id"].(string)
	for from, allowed := range transitions {
		tw.tickets[id].Status = from
		for _, candidate := range []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusResolved, StatusClosed} {
			_, err := tw.Transition(id, candidate)
			wantOK := allowed[candidate]
			if wantOK && err != nil {
				t.Fatalf("%s -> %s should be allowed, got %v", from, candidate, err)
			}
			if !wantOK && err == nil {
				t.Fatalf("%s -> %s should be invalid_transition", from, candidate)
			}
			tw.tickets[id].Status = from
		}
	}
}

func TestAddCommentIDs(t *testing.T) {
	tw := New(bus.New())
	created, _ := tw.Create("T", "", "", "", "", nil)
	id := created["ticket_id"].(string)
	c1, _ := tw.AddComment(id, "sam", "first")
	c2, _ := tw.AddComment(id, "sam", "second")
	if c1["comment_id"] == c2["comment_id"] {
		t.Fatal("comment ids must be distinct")
	}
}
