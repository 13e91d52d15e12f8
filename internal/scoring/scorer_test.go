package scoring

import (
	"testing"

	"github.com/haasonsaas/vei/internal/tracelog"
)

func TestComputeScoreEmailModeSucceedsOnParsedQuote(t *testing.T) {
	records := []tracelog.CallRecord{
		{TimeMs: 0, Tool: "browser.read", Args: map[string]any{"node_id": "vendor-1"}, Response: map[string]any{"excerpt": "list price $1200"}},
		{TimeMs: 100, Tool: "mail.compose", Args: map[string]any{"to": "vendor@example.com", "subj": "RFQ", "body_text": "please send a quote"}},
		{TimeMs: 200, Tool: "mail.list", Response: map[string]any{
			"rows": []any{
				map[string]any{"body_text": "Quote: $1200, ETA: 3-5 business days"},
			},
		}},
	}

	result := ComputeScore(records, ModeEmail)
	if !result.Success {
		t.Fatalf("expected success in email mode, got %+v", result)
	}
	if !result.Subgoals.EmailParsed {
		t.Fatalf("expected email_parsed subgoal, got %+v", result.Subgoals)
	}
	if !result.SuccessEmailOnly || result.SuccessFullFlow {
		t.Fatalf("expected email-only success without full flow, got %+v", result)
	}
}

func TestComputeScoreFullModeRequiresAllSubgoals(t *testing.T) {
	records := []tracelog.CallRecord{
		{TimeMs: 0, Tool: "browser.read", Response: map[string]any{"excerpt": "vendor catalog"}},
		{TimeMs: 100, Tool: "mail.compose", Args: map[string]any{"body_text": "RFQ"}},
		{TimeMs: 200, Tool: "mail.list", Response: map[string]any{"rows": []any{
			map[string]any{"body_text": "Quote: $1200, ETA: 3-5 days"},
		}}},
		{TimeMs: 300, Tool: "slack.post", Args: map[string]any{"text": "approved for $1200"}},
		{TimeMs: 400, Tool: "docs.create", Args: map[string]any{"title": "Vendor quote", "body": "Quote $1200"}},
		{TimeMs: 500, Tool: "tickets.update", Args: map[string]any{"ticket_id": "T-1", "description": "done"}},
		{TimeMs: 550, Tool: "crm.log_activity", Args: map[string]any{"note": "Quote $1200, ETA 3-5 days"}},
	}

	result := ComputeScore(records, ModeFull)
	if !result.Success {
		t.Fatalf("expected full-mode success, got %+v", result)
	}
	if !result.SuccessFullFlow {
		t.Fatalf("expected success_full_flow true, got %+v", result)
	}
}

func TestComputeScoreFlagsMissingDocAndTicket(t *testing.T) {
	records := []tracelog.CallRecord{
		{TimeMs: 0, Tool: "mail.compose", Args: map[string]any{"body_text": "RFQ"}},
	}
	result := ComputeScore(records, ModeEmail)

	var sawDocMissing, sawTicketMissing bool
	for _, f := range result.Policy.Findings {
		if f.Code == "docs.quote_missing" {
			sawDocMissing = true
		}
		if f.Code == "tickets.update_missing" {
			sawTicketMissing = true
		}
	}
	if !sawDocMissing || !sawTicketMissing {
		t.Fatalf("expected both missing-doc and missing-ticket findings, got %+v", result.Policy.Findings)
	}
	if result.Policy.WarningCount == 0 {
		t.Fatalf("expected at least one warning finding")
	}
}

func TestComputeScoreCRMNoteMissingAmountWarns(t *testing.T) {
	records := []tracelog.CallRecord{
		{TimeMs: 0, Tool: "crm.log_activity", Args: map[string]any{"note": "vendor responded, no pricing yet"}},
	}
	result := ComputeScore(records, ModeEmail)
	if !result.Subgoals.CRMLogged {
		t.Fatalf("expected crm_logged true")
	}
	found := false
	for _, f := range result.Policy.Findings {
		if f.Code == "crm.note_missing_amount" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected crm.note_missing_amount finding, got %+v", result.Policy.Findings)
	}
}

func TestComputeScoreCRMFollowupLatencyWarning(t *testing.T) {
	records := []tracelog.CallRecord{
		{TimeMs: 0, Tool: "mail.list", Response: map[string]any{"rows": []any{
			map[string]any{"body_text": "Quote: $500, ETA: 2 days"},
		}}},
		{TimeMs: 120000, Tool: "crm.log_activity", Args: map[string]any{"note": "Quote $500, ETA 2 days"}},
	}
	result := ComputeScore(records, ModeEmail)
	found := false
	for _, f := range result.Policy.Findings {
		if f.Code == "sla.crm_followup_latency" {
			found = true
			if f.Metadata["latency_ms"].(int64) != 120000 {
				t.Fatalf("unexpected latency metadata: %+v", f.Metadata)
			}
		}
	}
	if !found {
		t.Fatalf("expected sla.crm_followup_latency finding, got %+v", result.Policy.Findings)
	}
}

func TestHasAmountAndHasETA(t *testing.T) {
	if !hasAmount("the total is $1,250.00") {
		t.Fatal("expected dollar amount to match")
	}
	if !hasAmount("budget: 3200") {
		t.Fatal("expected budget phrasing to match")
	}
	if !hasETA("ETA: 3-5 business days") {
		t.Fatal("expected eta phrasing to match")
	}
	if hasETA("no timing mentioned here") {
		t.Fatal("expected no eta match")
	}
}
