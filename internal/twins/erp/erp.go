// Package erp implements the ERP twin (spec.md §4.3.8): purchase orders,
// goods receipts, invoices, three-way match, and payment posting. All money
// is tracked in integer cents to avoid floating-point drift.
package erp

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Line is a single PO/invoice/receipt line item.
type Line struct {
	LineNo      int
	ItemID      string
	Description string
	Qty         int
	UnitCents   int64
	AmountCents int64
}

// PurchaseOrder is the twin's PO record.
type PurchaseOrder struct {
	PO_ID           string
	Vendor          string
	Currency        string
	Status          string
	Lines           []Line
	AmountCents     int64
	CreatedMs       int64
	UpdatedMs       int64
	ReceivedQtyByItem map[string]int
	LastMatch       map[string]any
}

// Invoice is the twin's invoice record.
type Invoice struct {
	InvoiceID      string
	POID           string
	Vendor         string
	Status         string
	Lines          []Line
	AmountCents    int64
	PaidCents      int64
	CreatedMs      int64
	UpdatedMs      int64
}

// Receipt is the twin's goods-receipt record.
type Receipt struct {
	ReceiptID string
	POID      string
	Lines     []Line
	TimeMs    int64
}

// Twin implements bus.Receiver and router.ToolProvider for the "erp." prefix.
type Twin struct {
	bus       *bus.Bus
	rng       *rand.Rand
	errorRate float64
	pos       map[string]*PurchaseOrder
	invoices  map[string]*Invoice
	receipts  map[string]*Receipt
	poSeq, invSeq, rcptSeq int
}

// New constructs an ERP twin. errorRate mirrors VEI_ERP_ERROR_RATE: the
// probability of a sampled validation_error on invoice submission, halved
// for payment_rejected on payment posting.
func New(b *bus.Bus, seed int64, errorRate float64) *Twin {
	return &Twin{
		bus: b, rng: rand.New(rand.NewSource(seed)), errorRate: errorRate,
		pos: make(map[string]*PurchaseOrder), invoices: make(map[string]*Invoice), receipts: make(map[string]*Receipt),
		poSeq: 1, invSeq: 1, rcptSeq: 1,
	}
}

func buildLines(raw []map[string]any) ([]Line, int64) {
	var total int64
	lines := make([]Line, 0, len(raw))
	for i, ln := range raw {
		qty, _ := router.ArgInt(ln["qty"])
		unitCents := moneyToCents(ln["unit_price"])
		lineTotal := int64(qty) * unitCents
		total += lineTotal
		itemID, _ := ln["item_id"].(string)
		if itemID == "" {
			itemID = fmt.Sprintf("%d", i+1)
		}
		desc, _ := ln["desc"].(string)
		lines = append(lines, Line{LineNo: i + 1, ItemID: itemID, Description: desc, Qty: qty, UnitCents: unitCents, AmountCents: lineTotal})
	}
	return lines, total
}

func moneyToCents(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x * 100
	case int:
		return int64(x) * 100
	case float64:
		return int64(x*100 + 0.5)
	default:
		return 0
	}
}

func centsToMoney(c int64) float64 { return float64(c) / 100.0 }

func linesPayload(lines []Line) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{
			"line_no": l.LineNo, "item_id": l.ItemID, "desc": l.Description,
			"qty": l.Qty, "unit_price": centsToMoney(l.UnitCents), "amount": centsToMoney(l.AmountCents),
		})
	}
	return out
}

// CreatePO opens a new purchase order in status OPEN.
func (t *Twin) CreatePO(vendor, currency string, rawLines []map[string]any) (map[string]any, error) {
	id := fmt.Sprintf("PO-%d", t.poSeq)
	t.poSeq++
	lines, total := buildLines(rawLines)
	if currency == "" {
		currency = "USD"
	}
	received := make(map[string]int, len(lines))
	for _, l := range lines {
		received[l.ItemID] = 0
	}
	now := t.bus.ClockMs()
	po := &PurchaseOrder{PO_ID: id, Vendor: vendor, Currency: currency, Status: "OPEN", Lines: lines, AmountCents: total, CreatedMs: now, UpdatedMs: now, ReceivedQtyByItem: received}
	t.pos[id] = po
	return map[string]any{"id": id, "amount": centsToMoney(total), "currency": currency}, nil
}

func (t *Twin) poPayload(po *PurchaseOrder) map[string]any {
	received := make(map[string]any, len(po.ReceivedQtyByItem))
	for k, v := range po.ReceivedQtyByItem {
		received[k] = v
	}
	m := map[string]any{
		"id": po.PO_ID, "vendor": po.Vendor, "currency": po.Currency, "status": po.Status,
		"lines": linesPayload(po.Lines), "amount": centsToMoney(po.AmountCents),
		"created_ms": po.CreatedMs, "updated_ms": po.UpdatedMs, "received_qty_by_item": received,
	}
	if po.LastMatch != nil {
		m["last_three_way_match"] = po.LastMatch
	}
	return m
}

// GetPO returns a single PO.
func (t *Twin) GetPO(id string) (map[string]any, error) {
	po, ok := t.pos[id]
	if !ok {
		return nil, router.Errorf("unknown_po", "unknown PO: %s", id)
	}
	return t.poPayload(po), nil
}

// ListPOs returns purchase orders, paginated unless legacy is set.
func (t *Twin) ListPOs(args router.ListArgs, vendor, status, currency string) (map[string]any, error) {
	ids := make([]string, 0, len(t.pos))
	for id := range t.pos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.poPayload(t.pos[id]))
	}
	if vendor != "" {
		needle := strings.ToLower(vendor)
		filtered := rows[:0:0]
		for _, r := range rows {
			if strings.Contains(strings.ToLower(r["vendor"].(string)), needle) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if status != "" {
		wanted := strings.ToUpper(status)
		filtered := rows[:0:0]
		for _, r := range rows {
			if r["status"].(string) == wanted {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if currency != "" {
		wanted := strings.ToUpper(currency)
		filtered := rows[:0:0]
		for _, r := range rows {
			if strings.ToUpper(r["currency"].(string)) == wanted {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "created_ms"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"purchase_orders": rows}, nil
	}
	page, err := router.PageRows(rows, "purchase_orders", args.Limit, args.Cursor, "erp.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// ReceiveGoods posts a goods receipt against a PO, rejecting with
// qty_exceeds_po any line whose cumulative received quantity would exceed
// the ordered quantity.
func (t *Twin) ReceiveGoods(poID string, rawLines []map[string]any) (map[string]any, error) {
	po, ok := t.pos[poID]
	if !ok {
		return nil, router.Errorf("unknown_po", "unknown PO: %s", poID)
	}
	orderedByItem := make(map[string]int, len(po.Lines))
	for _, l := range po.Lines {
		orderedByItem[l.ItemID] = l.Qty
	}
	received := make(map[string]int, len(po.ReceivedQtyByItem))
	for k, v := range po.ReceivedQtyByItem {
		received[k] = v
	}
	rcptLines := make([]Line, 0, len(rawLines))
	for _, ln := range rawLines {
		itemID, _ := ln["item_id"].(string)
		qty, _ := router.ArgInt(ln["qty"])
		ordered, known := orderedByItem[itemID]
		if !known {
			return nil, router.Errorf("unknown_item", "item %s is not present on PO %s", itemID, poID)
		}
		newTotal := received[itemID] + qty
		if newTotal > ordered {
			return nil, router.Errorf("qty_exceeds_po", "received qty for %s exceeds ordered qty on %s", itemID, poID)
		}
		received[itemID] = newTotal
		rcptLines = append(rcptLines, Line{ItemID: itemID, Qty: qty})
	}
	rcptID := fmt.Sprintf("RCPT-%d", t.rcptSeq)
	t.rcptSeq++
	now := t.bus.ClockMs()
	t.receipts[rcptID] = &Receipt{ReceiptID: rcptID, POID: poID, Lines: rcptLines, TimeMs: now}

	allReceived := true
	for itemID, qty := range orderedByItem {
		if received[itemID] < qty {
			allReceived = false
			break
		}
	}
	po.ReceivedQtyByItem = received
	if allReceived {
		po.Status = "RECEIVED"
	} else {
		po.Status = "PARTIALLY_RECEIVED"
	}
	po.UpdatedMs = now
	return map[string]any{"id": rcptID, "po_status": po.Status}, nil
}

// SubmitInvoice files an invoice against a PO, enforcing vendor match and
// sampling a validation_error fault.
func (t *Twin) SubmitInvoice(vendor, poID string, rawLines []map[string]any) (map[string]any, error) {
	po, ok := t.pos[poID]
	if !ok {
		return nil, router.Errorf("unknown_po", "unknown PO: %s", poID)
	}
	if !strings.EqualFold(strings.TrimSpace(po.Vendor), strings.TrimSpace(vendor)) {
		return nil, router.Errorf("vendor_mismatch", "invoice vendor %s does not match PO vendor %s", vendor, po.Vendor)
	}
	if t.errorRate > 0 && t.rng.Float64() < t.errorRate {
		return nil, router.NewError("validation_error", "duplicate invoice number or invalid tax")
	}
	id := fmt.Sprintf("INV-%d", t.invSeq)
	t.invSeq++
	lines, total := buildLines(rawLines)
	now := t.bus.ClockMs()
	inv := &Invoice{InvoiceID: id, POID: poID, Vendor: vendor, Status: "OPEN", Lines: lines, AmountCents: total, CreatedMs: now, UpdatedMs: now}
	t.invoices[id] = inv
	po.Status = "INVOICED"
	po.UpdatedMs = now
	return map[string]any{"id": id, "amount": centsToMoney(total)}, nil
}

func (t *Twin) invoicePayload(inv *Invoice) map[string]any {
	return map[string]any{
		"id": inv.InvoiceID, "po_id": inv.POID, "vendor": inv.Vendor, "status": inv.Status,
		"lines": linesPayload(inv.Lines), "amount": centsToMoney(inv.AmountCents),
		"paid_amount": centsToMoney(inv.PaidCents), "time_ms": inv.CreatedMs, "updated_ms": inv.UpdatedMs,
	}
}

// GetInvoice returns a single invoice.
func (t *Twin) GetInvoice(id string) (map[string]any, error) {
	inv, ok := t.invoices[id]
	if !ok {
		return nil, router.Errorf("unknown_invoice", "unknown invoice: %s", id)
	}
	return t.invoicePayload(inv), nil
}

// ListInvoices returns invoices, paginated unless legacy is set.
func (t *Twin) ListInvoices(args router.ListArgs, status, vendor, poID string) (map[string]any, error) {
	ids := make([]string, 0, len(t.invoices))
	for id := range t.invoices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.invoicePayload(t.invoices[id]))
	}
	if status != "" {
		wanted := strings.ToUpper(status)
		filtered := rows[:0:0]
		for _, r := range rows {
			if r["status"].(string) == wanted {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if vendor != "" {
		needle := strings.ToLower(vendor)
		filtered := rows[:0:0]
		for _, r := range rows {
			if strings.Contains(strings.ToLower(r["vendor"].(string)), needle) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if poID != "" {
		filtered := rows[:0:0]
		for _, r := range rows {
			if r["po_id"].(string) == poID {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "updated_ms"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"invoices": rows}, nil
	}
	page, err := router.PageRows(rows, "invoices", args.Limit, args.Cursor, "erp.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// MatchThreeWay compares PO, invoice, and (optionally) receipt quantities
// and amounts, recording the outcome on the PO.
func (t *Twin) MatchThreeWay(poID, invoiceID, receiptID string) (map[string]any, error) {
	po, ok := t.pos[poID]
	if !ok {
		return nil, router.NewError("unknown_ref", "PO or invoice not found")
	}
	inv, ok := t.invoices[invoiceID]
	if !ok {
		return nil, router.NewError("unknown_ref", "PO or invoice not found")
	}
	var rcpt *Receipt
	if receiptID != "" {
		rcpt = t.receipts[receiptID]
	}

	poQty := map[string]int{}
	for _, l := range po.Lines {
		poQty[l.ItemID] = l.Qty
	}
	invQty := map[string]int{}
	for _, l := range inv.Lines {
		invQty[l.ItemID] = l.Qty
	}
	rcptQty := map[string]int{}
	if rcpt != nil {
		for _, l := range rcpt.Lines {
			rcptQty[l.ItemID] += l.Qty
		}
	}

	amountOK := absInt64(po.AmountCents-inv.AmountCents) <= 1
	items := map[string]bool{}
	for it := range poQty {
		items[it] = true
	}
	for it := range invQty {
		items[it] = true
	}
	var mismatches []map[string]any
	itemIDs := make([]string, 0, len(items))
	for it := range items {
		itemIDs = append(itemIDs, it)
	}
	sort.Strings(itemIDs)
	for _, it := range itemIDs {
		pq, iq, rq := poQty[it], invQty[it], rcptQty[it]
		if pq != iq || (rcpt != nil && iq > rq) {
			mismatches = append(mismatches, map[string]any{"item_id": it, "po": pq, "invoice": iq, "received": rq})
		}
	}
	status := "MATCH"
	if !amountOK || len(mismatches) > 0 {
		status = "MISMATCH"
	}
	now := t.bus.ClockMs()
	var receiptIDValue any
	if receiptID != "" {
		receiptIDValue = receiptID
	}
	po.LastMatch = map[string]any{"invoice_id": invoiceID, "receipt_id": receiptIDValue, "status": status, "time_ms": now}
	po.UpdatedMs = now
	return map[string]any{
		"status": status, "amount_ok": amountOK, "qty_mismatches": mismatches,
		"po_id": poID, "invoice_id": invoiceID, "receipt_id": receiptIDValue,
	}, nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// PostPayment applies a payment against an invoice, clamping to the invoice
// total and sampling a payment_rejected fault.
func (t *Twin) PostPayment(invoiceID string, amount float64) (map[string]any, error) {
	inv, ok := t.invoices[invoiceID]
	if !ok {
		return nil, router.Errorf("unknown_invoice", "unknown invoice: %s", invoiceID)
	}
	if t.errorRate > 0 && t.rng.Float64() < t.errorRate/2 {
		return nil, router.NewError("payment_rejected", "bank rejected payment")
	}
	paidCents := inv.PaidCents + int64(amount*100+0.5)
	if paidCents > inv.AmountCents {
		paidCents = inv.AmountCents
	}
	inv.PaidCents = paidCents
	inv.UpdatedMs = t.bus.ClockMs()
	switch {
	case paidCents >= inv.AmountCents:
		inv.Status = "PAID"
	case paidCents > 0:
		inv.Status = "PARTIALLY_PAID"
	}
	return map[string]any{"status": inv.Status, "paid_amount": centsToMoney(inv.PaidCents)}, nil
}

// Deliver applies a scheduled ERP event, dispatching on an explicit op.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	switch op {
	case "receive_goods":
		poID, _ := payload["po_id"].(string)
		lines, _ := router.ArgMapSlice(payload["lines"])
		return t.ReceiveGoods(poID, lines)
	case "submit_invoice":
		vendor, _ := payload["vendor"].(string)
		poID, _ := payload["po_id"].(string)
		lines, _ := router.ArgMapSlice(payload["lines"])
		return t.SubmitInvoice(vendor, poID, lines)
	case "post_payment":
		invoiceID, _ := payload["invoice_id"].(string)
		amount, _ := router.ArgFloat64(payload["amount"])
		return t.PostPayment(invoiceID, amount)
	default:
		vendor, _ := payload["vendor"].(string)
		if vendor == "" {
			return nil, router.NewError("invalid_args", "erp delivery requires a recognized op or vendor to create a PO")
		}
		currency, _ := payload["currency"].(string)
		lines, _ := router.ArgMapSlice(payload["lines"])
		return t.CreatePO(vendor, currency, lines)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "erp.create_po", Description: "Create a purchase order.", SideEffects: []string{"erp_mutation"}, DefaultLatencyMs: 200, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("vendor", "lines")},
		{Name: "erp.get_po", Description: "Fetch a purchase order.", DefaultLatencyMs: 110, LatencyJitterMs: 30},
		{Name: "erp.list_pos", Description: "List purchase orders.", DefaultLatencyMs: 130, LatencyJitterMs: 40},
		{Name: "erp.receive_goods", Description: "Post a goods receipt against a PO.", SideEffects: []string{"erp_mutation"}, DefaultLatencyMs: 210, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("po_id", "lines")},
		{Name: "erp.submit_invoice", Description: "Submit an invoice against a PO.", SideEffects: []string{"erp_mutation"}, DefaultLatencyMs: 220, LatencyJitterMs: 70, FaultProbability: 0, InputSchema: router.RequiredSchema("vendor", "po_id", "lines")},
		{Name: "erp.get_invoice", Description: "Fetch an invoice.", DefaultLatencyMs: 110, LatencyJitterMs: 30},
		{Name: "erp.list_invoices", Description: "List invoices.", DefaultLatencyMs: 130, LatencyJitterMs: 40},
		{Name: "erp.match_three_way", Description: "Match PO, invoice, and receipt.", DefaultLatencyMs: 160, LatencyJitterMs: 50},
		{Name: "erp.post_payment", Description: "Post a payment against an invoice.", SideEffects: []string{"erp_mutation"}, DefaultLatencyMs: 200, LatencyJitterMs: 60, FaultProbability: 0, InputSchema: router.RequiredSchema("invoice_id", "amount")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"erp."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	pos := make(map[string]any, len(t.pos))
	for id, po := range t.pos {
		pos[id] = map[string]any{"status": po.Status, "amount_cents": po.AmountCents}
	}
	invoices := make(map[string]any, len(t.invoices))
	for id, inv := range t.invoices {
		invoices[id] = map[string]any{"status": inv.Status, "amount_cents": inv.AmountCents, "paid_cents": inv.PaidCents}
	}
	return map[string]any{
		"purchase_orders": pos,
		"invoices":        invoices,
		"receipt_count":   len(t.receipts),
	}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "erp.create_po":
		vendor, _ := args["vendor"].(string)
		currency, _ := args["currency"].(string)
		lines, _ := router.ArgMapSlice(args["lines"])
		return t.CreatePO(vendor, currency, lines)
	case "erp.get_po":
		id, _ := args["id"].(string)
		return t.GetPO(id)
	case "erp.list_pos":
		vendor, _ := args["vendor"].(string)
		status, _ := args["status"].(string)
		currency, _ := args["currency"].(string)
		return t.ListPOs(router.ListArgsFromMap(args), vendor, status, currency)
	case "erp.receive_goods":
		poID, _ := args["po_id"].(string)
		lines, _ := router.ArgMapSlice(args["lines"])
		return t.ReceiveGoods(poID, lines)
	case "erp.submit_invoice":
		vendor, _ := args["vendor"].(string)
		poID, _ := args["po_id"].(string)
		lines, _ := router.ArgMapSlice(args["lines"])
		return t.SubmitInvoice(vendor, poID, lines)
	case "erp.get_invoice":
		id, _ := args["id"].(string)
		return t.GetInvoice(id)
	case "erp.list_invoices":
		status, _ := args["status"].(string)
		vendor, _ := args["vendor"].(string)
		poID, _ := args["po_id"].(string)
		return t.ListInvoices(router.ListArgsFromMap(args), status, vendor, poID)
	case "erp.match_three_way":
		poID, _ := args["po_id"].(string)
		invoiceID, _ := args["invoice_id"].(string)
		receiptID, _ := args["receipt_id"].(string)
		return t.MatchThreeWay(poID, invoiceID, receiptID)
	case "erp.post_payment":
		invoiceID, _ := args["invoice_id"].(string)
		amount, _ := router.ArgFloat64(args["amount"])
		return t.PostPayment(invoiceID, amount)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
