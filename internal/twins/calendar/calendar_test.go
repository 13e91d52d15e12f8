package calendar

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

func TestCreateUpdateCancelLifecycle(t *testing.T) {
	tw := New(bus.New(), nil)
	created, err := tw.Create("Standup", 1000, 2000, []string{"sam", "jane"}, "", "", "sam", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created["event_id"].(string)

	newTitle := "Standup (moved)"
	updated, err := tw.Update(id, &newTitle, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["version"].(int) != 2 {
		t.Fatalf("version = %v, want 2", updated["version"])
	}

	cancelled, err := tw.Cancel(id, "conflict")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled["changed"].(bool) != true {
		t.Fatal("expected changed=true on first cancel")
	}

	again, err := tw.Cancel(id, "conflict")
	if err != nil {
		t.Fatalf("cancel again: %v", err)
	}
	if again["changed"].(bool) != false {
		t.Fatal("expected changed=false on idempotent re-cancel")
	}
}

func TestCancelledEventRejectsWrites(t *testing.T) {
	tw := New(bus.New(), nil)
	created, _ := tw.Create("Review", 1000, 2000, []string{"sam"}, "", "", "sam", "")
	id := created["event_id"].(string)
	if _, err := tw.Cancel(id, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	newTitle := "Should fail"
	if _, err := tw.Update(id, &newTitle, nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected update on cancelled event to fail")
	}
	if _, err := tw.Accept(id, "sam"); err == nil {
		t.Fatal("expected accept on cancelled event to fail")
	}
}

func TestRespondValidatesAttendeeMembership(t *testing.T) {
	tw := New(bus.New(), nil)
	created, _ := tw.Create("1:1", 1000, 2000, []string{"sam", "jane"}, "", "", "sam", "")
	id := created["event_id"].(string)

	if _, err := tw.Accept(id, "mallory"); err == nil {
		t.Fatal("expected non-attendee accept to fail")
	}
	if _, err := tw.Decline(id, "jane"); err != nil {
		t.Fatalf("decline: %v", err)
	}
}

func TestDeliverOpAuthoritative(t *testing.T) {
	tw := New(bus.New(), []Seed{{EventID: "EVT-1", Title: "Existing", StartMs: 1000, EndMs: 2000}})
	if _, err := tw.Deliver(map[string]any{"op": "cancel", "event_id": "EVT-1", "reason": "vendor no-show"}); err != nil {
		t.Fatalf("deliver cancel: %v", err)
	}
	read := tw.events["EVT-1"]
	if read.Status != StatusCanceled {
		t.Fatalf("status = %v, want CANCELED", read.Status)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	tw := New(bus.New(), nil)
	if _, err := tw.Create("Bad", 1000, 2000, nil, "", "", "sam", Status("BOGUS")); err == nil {
		t.Fatal("expected invalid_args for bogus status")
	}
}

func TestListLegacyVsPaginated(t *testing.T) {
	tw := New(bus.New(), nil)
	for i := 0; i < 3; i++ {
		if _, err := tw.Create("E", 1000, 2000, nil, "", "", "sam", ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	legacy, err := tw.List(router.ListArgs{SortDir: "asc", Legacy: true}, "", "", nil, nil)
	if err != nil {
		t.Fatalf("list legacy: %v", err)
	}
	if _, ok := legacy["events"].([]map[string]any); !ok {
		t.Fatal("legacy list should return plain events array")
	}

	limit := 2
	paged, err := tw.List(router.ListArgs{SortDir: "asc", Limit: &limit}, "", "", nil, nil)
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if _, ok := paged["has_more"]; !ok {
		t.Fatal("paginated list should include has_more")
	}
}
