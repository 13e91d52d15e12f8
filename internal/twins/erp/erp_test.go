package erp

import (
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
)

func poLines() []map[string]any {
	return []map[string]any{
		{"item_id": "WIDGET", "qty": 10, "unit_price": 5.0},
	}
}

func TestPOThreeWayMatchHappyPath(t *testing.T) {
	tw := New(bus.New(), 1, 0)
	created, err := tw.CreatePO("Acme Supply", "USD", poLines())
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	poID := created["id"].(string)
	if created["amount"].(float64) != 50.0 {
		t.Fatalf("po amount = %v, want 50.0", created["amount"])
	}

	rcpt, err := tw.ReceiveGoods(poID, []map[string]any{{"item_id": "WIDGET", "qty": 10}})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if rcpt["po_status"].(string) != "RECEIVED" {
		t.Fatalf("po_status = %v, want RECEIVED", rcpt["po_status"])
	}

	inv, err := tw.SubmitInvoice("Acme Supply", poID, poLines())
	if err != nil {
		t.Fatalf("submit invoice: %v", err)
	}
	invID := inv["id"].(string)

	match, err := tw.MatchThreeWay(poID, invID, "")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match["status"].(string) != "MATCH" {
		t.Fatalf("match status = %v, want MATCH", match["status"])
	}

	paid, err := tw.PostPayment(invID, 50.0)
	if err != nil {
		t.Fatalf("post payment: %v", err)
	}
	if paid["status"].(string) != "PAID" {
		t.Fatalf("invoice status = %v, want PAID", paid["status"])
	}
}

func TestReceiveGoodsRejectsOverReceipt(t *testing.T) {
	tw := New(bus.New(), 1, 0)
	created, _ := tw.CreatePO("Acme", "USD", poLines())
	poID := created["id"].(string)
	if _, err := tw.ReceiveGoods(poID, []map[string]any{{"item_id": "WIDGET", "qty": 11}}); err == nil {
		t.Fatal("expected qty_exceeds_po")
	}
}

func TestSubmitInvoiceVendorMismatch(t *testing.T) {
	tw := New(bus.New(), 1, 0)
	created, _ := tw.CreatePO("Acme", "USD", poLines())
	poID := created["id"].(string)
	if _, err := tw.SubmitInvoice("Different Vendor", poID, poLines()); err == nil {
		t.Fatal("expected vendor_mismatch")
	}
}

func TestPaymentClampsToInvoiceTotal(t *testing.T) {
	tw := New(bus.New(), 1, 0)
	created, _ := tw.CreatePO("Acme", "USD", poLines())
	poID := created["id"].(string)
	inv, _ := tw.SubmitInvoice("Acme", poID, poLines())
	invID := inv["id"].(string)

	paid, err := tw.PostPayment(invID, 1000.0)
	if err != nil {
		t.Fatalf("post payment: %v", err)
	}
	if paid["paid_amount"].(float64) != 50.0 {
		t.Fatalf("paid_amount = %v, want clamped to 50.0", paid["paid_amount"])
	}
	if paid["status"].(string) != "PAID" {
		t.Fatalf("status = %v, want PAID", paid["status"])
	}
}

func TestSubmitInvoiceInjectedFault(t *testing.T) {
	tw := New(bus.New(), 1, 1.0) // errorRate=1.0 forces validation_error deterministically
	created, _ := tw.CreatePO("Acme", "USD", poLines())
	poID := created["id"].(string)
	if _, err := tw.SubmitInvoice("Acme", poID, poLines()); err == nil {
		t.Fatal("expected validation_error at errorRate=1.0")
	}
}
