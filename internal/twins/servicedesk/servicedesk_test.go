package servicedesk

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
)

func TestIncidentLifecycle(t *testing.T) {
	tw := New(bus.New())
	created, err := tw.CreateIncident("Checkout outage", "sev1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created["incident_id"].(string)

	if _, err := tw.TransitionIncident(id, IncidentInvestigating); err != nil {
		t.Fatalf("transition to investigating: %v", err)
	}
	if _, err := tw.TransitionIncident(id, IncidentResolved); err != nil {
		t.Fatalf("transition to resolved: %v", err)
	}
	if _, err := tw.TransitionIncident(id, IncidentMitigated); err == nil {
		t.Fatal("expected invalid_transition from resolved to mitigated")
	}
}

func TestRequestApprovalDrivesStatus(t *testing.T) {
	tw := New(bus.New())
	created, err := tw.CreateRequest("New laptop", "sam")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created["request_id"].(string)

	updated, err := tw.UpdateApproval(id, ApprovalStageManager, ApprovalStatusApproved)
	if err != nil {
		t.Fatalf("update approval: %v", err)
	}
	if updated["status"].(string) != string(RequestApproved) {
		t.Fatalf("status = %v, want approved", updated["status"])
	}

	if _, err := tw.TransitionRequest(id, RequestFulfilled); err != nil {
		t.Fatalf("transition to fulfilled: %v", err)
	}
}

func TestRequestDenialRejectsFulfillment(t *testing.T) {
	tw := New(bus.New())
	created, _ := tw.CreateRequest("Admin access", "mallory")
	id := created["request_id"].(string)
	if _, err := tw.UpdateApproval(id, ApprovalStageFinal, ApprovalStatusDenied); err != nil {
		t.Fatalf("update approval: %v", err)
	}
	if _, err := tw.TransitionRequest(id, RequestFulfilled); err == nil {
		t.Fatal("expected invalid_transition moving a rejected request to fulfilled")
	}
}
