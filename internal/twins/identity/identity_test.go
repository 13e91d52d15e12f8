package identity

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
)

func TestSeedDataAndRelationshipSync(t *testing.T) {
	tw := New(bus.New())
	jane, err := tw.GetUser("jane@example.com")
	if err != nil {
		t.Fatalf("get jane: %v", err)
	}
	if jane["status"].(string) != string(StatusActive) {
		t.Fatalf("jane status = %v, want ACTIVE", jane["status"])
	}

	groups := tw.ListGroups()["groups"].([]map[string]any)
	var security map[string]any
	for _, g := range groups {
		if g["group_id"].(string) == "GRP-security" {
			security = g
		}
	}
	if security == nil {
		t.Fatal("GRP-security not seeded")
	}
	members := security["members"].([]string)
	if len(members) != 1 || members[0] != "jane@example.com" {
		t.Fatalf("GRP-security members = %v, want [jane@example.com]", members)
	}
}

func TestSuspendDeprovisionedRejected(t *testing.T) {
	tw := New(bus.New())
	if _, err := tw.DeactivateUser("jane@example.com"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := tw.ActivateUser("jane@example.com"); err == nil {
		t.Fatal("expected okta.invalid_state reactivating a deprovisioned user")
	}
	if _, err := tw.SuspendUser("jane@example.com"); err == nil {
		t.Fatal("expected okta.invalid_state suspending a deprovisioned user")
	}
}

func TestUnsuspendRequiresSuspended(t *testing.T) {
	tw := New(bus.New())
	if _, err := tw.UnsuspendUser("jane@example.com"); err == nil {
		t.Fatal("expected okta.invalid_state unsuspending an already-active user")
	}
	if _, err := tw.UnsuspendUser("mike@example.com"); err != nil {
		t.Fatalf("unsuspend mike: %v", err)
	}
}

func TestResetPasswordIssuesUniqueTokens(t *testing.T) {
	tw := New(bus.New())
	r1, err := tw.ResetPassword("jane@example.com")
	if err != nil {
		t.Fatalf("reset 1: %v", err)
	}
	r2, err := tw.ResetPassword("jane@example.com")
	if err != nil {
		t.Fatalf("reset 2: %v", err)
	}
	if r1["reset_token"].(string) == r2["reset_token"].(string) {
		t.Fatal("reset tokens must be distinct across calls")
	}
	if r1["expires_ms"].(int64) != 3_600_000 {
		t.Fatalf("expires_ms = %v, want 3600000", r1["expires_ms"])
	}
}

func TestAssignUnassignGroup(t *testing.T) {
	tw := New(bus.New())
	if _, err := tw.AssignGroup("mike@example.com", "GRP-security"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	groups := tw.ListGroups()["groups"].([]map[string]any)
	for _, g := range groups {
		if g["group_id"].(string) == "GRP-security" {
			members := g["members"].([]string)
			found := false
			for _, m := range members {
				if m == "mike@example.com" {
					found = true
				}
			}
			if !found {
				t.Fatal("mike should now be a member of GRP-security")
			}
		}
	}
	if _, err := tw.UnassignGroup("mike@example.com", "GRP-security"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
}

func TestUnknownUserAndGroupErrors(t *testing.T) {
	tw := New(bus.New())
	if _, err := tw.GetUser("nobody@example.com"); err == nil {
		t.Fatal("expected okta.user_not_found")
	}
	if _, err := tw.AssignGroup("jane@example.com", "GRP-nonexistent"); err == nil {
		t.Fatal("expected okta.group_not_found")
	}
}
