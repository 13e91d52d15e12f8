package crm

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
)

func TestCreateContactUniqueEmail(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	if _, err := tw.CreateContact("Jane", "jane@example.com", "", "", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tw.CreateContact("Jane2", "JANE@example.com", "", "", false); err == nil {
		t.Fatal("expected conflict.contact_exists for case-insensitive duplicate email")
	}
}

func TestCreateCompanyUniqueDomain(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	if _, err := tw.CreateCompany("Acme", "acme.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tw.CreateCompany("Acme2", "ACME.com"); err == nil {
		t.Fatal("expected conflict.company_exists for case-insensitive duplicate domain")
	}
}

func TestDealStageClosedIsSticky(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	created, err := tw.CreateDeal("Big Deal", "", "", "New", 500000)
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	id := created["deal_id"].(string)

	if _, err := tw.UpdateDealStage(id, "Closed Won"); err != nil {
		t.Fatalf("close deal: %v", err)
	}
	if _, err := tw.UpdateDealStage(id, "Prospecting"); err == nil {
		t.Fatal("expected invalid_stage_transition moving off a closed stage")
	}
	if _, err := tw.UpdateDealStage(id, "closed_won"); err != nil {
		t.Fatalf("re-asserting same closed stage should be allowed: %v", err)
	}
}

func TestDealStageAliasNormalization(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	created, _ := tw.CreateDeal("D", "", "", "closed_lost", 0)
	if created["stage"].(string) != StageClosedLost {
		t.Fatalf("stage = %v, want %v", created["stage"], StageClosedLost)
	}
}

func TestLogActivityInvalidKind(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	if _, err := tw.LogActivity("carrier_pigeon", "", ""); err == nil {
		t.Fatal("expected invalid_activity_kind")
	}
}

func TestLogActivityConsentViolation(t *testing.T) {
	tw := New(bus.New(), 1, 1.0) // errorRate=1.0 forces the fault deterministically
	created, _ := tw.CreateContact("Mallory", "mallory@example.com", "", "", true)
	contactID := created["contact_id"].(string)
	if _, err := tw.LogActivity("email_outreach", contactID, "hi"); err == nil {
		t.Fatal("expected consent_violation for DNC contact at errorRate=1.0")
	}
}

func TestLogActivityAllowedWhenNotDNC(t *testing.T) {
	tw := New(bus.New(), 1, 1.0)
	created, _ := tw.CreateContact("Sam", "sam@example.com", "", "", false)
	contactID := created["contact_id"].(string)
	if _, err := tw.LogActivity("email_outreach", contactID, "hi"); err != nil {
		t.Fatalf("expected no error for non-DNC contact, got %v", err)
	}
}
