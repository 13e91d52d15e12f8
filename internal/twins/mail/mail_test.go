package mail

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

func TestComposeSchedulesVendorReplyS1(t *testing.T) {
	b := bus.New()
	tw := New(b, "mail.agent", "agent@corp.example", []ReplyRule{
		{Address: "sales@macrocompute.example", ReplyAtMs: 15_000, From: "sales@macrocompute.example", SubjPrefix: "Re: ", BodyText: "Thanks for reaching out."},
	})

	composed, err := tw.Compose("agent@corp.example", "sales@macrocompute.example", "Quote request", "Can you send pricing?")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if composed["id"] == nil {
		t.Fatal("expected message id")
	}

	pending := b.Pending()
	if pending.Total < 1 {
		t.Fatalf("expected pending reply scheduled, got %+v", pending)
	}

	b.Tick(15_000)
	pendingAfter := b.Pending()
	if pendingAfter.Total != 0 {
		t.Fatalf("expected no pending events after tick, got %+v", pendingAfter)
	}

	listed, err := tw.List(router.ListArgs{SortDir: "asc", Legacy: true}, "INBOX")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	rows := listed["messages"].([]map[string]any)
	if len(rows) < 1 {
		t.Fatal("expected at least one inbox message after reply delivery")
	}
	found := false
	for _, r := range rows {
		if r["subj"].(string) == "Quote request" || r["subj"].(string) == "Re: Quote request" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reply subject referencing original subject, got %+v", rows)
	}
}

func TestOpenUnknownMessage(t *testing.T) {
	tw := New(bus.New(), "mail.agent", "agent@corp.example", nil)
	if _, err := tw.Open("m404"); err == nil {
		t.Fatal("expected unknown_message error")
	}
}

func TestComposeWithoutReplyRuleDoesNotSchedule(t *testing.T) {
	b := bus.New()
	tw := New(b, "mail.agent", "agent@corp.example", nil)
	if _, err := tw.Compose("agent@corp.example", "nobody@example.com", "Hi", "body"); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if b.Pending().Total != 0 {
		t.Fatal("expected no scheduled reply without a matching rule")
	}
}
