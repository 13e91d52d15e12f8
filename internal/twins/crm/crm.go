// Package crm implements the CRM twin (spec.md §4.3.7): contacts, companies,
// deals with a closed-set sticky stage machine, and activity logging with
// DNC consent enforcement.
package crm

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Canonical deal stages (spec.md §3); closed stages are sticky.
const (
	StageNew          = "New"
	StageProspecting  = "Prospecting"
	StageQualification = "Qualification"
	StageProposal     = "Proposal"
	StageNegotiation  = "Negotiation"
	StageClosedWon    = "Closed Won"
	StageClosedLost   = "Closed Lost"
)

var stageAliases = map[string]string{
	"new":           StageNew,
	"prospecting":   StageProspecting,
	"qualification": StageQualification,
	"proposal":      StageProposal,
	"negotiation":   StageNegotiation,
	"closed_won":    StageClosedWon,
	"closed won":    StageClosedWon,
	"closed_lost":   StageClosedLost,
	"closed lost":   StageClosedLost,
}

func normalizeStage(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := stageAliases[key]; ok {
		return canonical, nil
	}
	return "", router.Errorf("invalid_stage", "unrecognized deal stage: %s", raw)
}

func isClosed(stage string) bool { return stage == StageClosedWon || stage == StageClosedLost }

var allowedActivityKinds = map[string]bool{
	"note": true, "email_outreach": true, "call": true, "meeting": true, "task": true, "system_event": true,
}

// Contact, Company, Deal, Activity are the twin's entity records.
type Contact struct {
	ContactID string
	Name      string
	Email     string
	Phone     string
	CompanyID string
	DoNotContact bool
	CreatedMs int64
}

type Company struct {
	CompanyID string
	Name      string
	Domain    string
	CreatedMs int64
}

type Deal struct {
	DealID    string
	Name      string
	CompanyID string
	ContactID string
	Stage     string
	AmountCents int64
	CreatedMs int64
	UpdatedMs int64
}

type Activity struct {
	ActivityID string
	Kind       string
	ContactID  string
	Note       string
	TimeMs     int64
}

// Twin implements bus.Receiver and router.ToolProvider for the "crm." prefix.
type Twin struct {
	bus       *bus.Bus
	rng       *rand.Rand
	errorRate float64
	contacts  map[string]*Contact
	companies map[string]*Company
	deals     map[string]*Deal
	activities map[string]*Activity
	emailIndex  map[string]string
	domainIndex map[string]string
	seq         int
}

// New constructs a CRM twin. errorRate is the probability of sampling a
// consent_violation fault on outreach to a do-not-contact contact (mirrors
// VEI_CRM_ERROR_RATE in the original implementation).
func New(b *bus.Bus, seed int64, errorRate float64) *Twin {
	return &Twin{
		bus: b, rng: rand.New(rand.NewSource(seed)), errorRate: errorRate,
		contacts: make(map[string]*Contact), companies: make(map[string]*Company),
		deals: make(map[string]*Deal), activities: make(map[string]*Activity),
		emailIndex: make(map[string]string), domainIndex: make(map[string]string),
		seq: 1,
	}
}

func (t *Twin) nextID(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, t.seq)
	t.seq++
	return id
}

// CreateContact inserts a contact, enforcing unique case-insensitive email.
func (t *Twin) CreateContact(name, email, phone, companyID string, doNotContact bool) (map[string]any, error) {
	key := strings.ToLower(email)
	if email != "" {
		if _, exists := t.emailIndex[key]; exists {
			return nil, router.Errorf("conflict.contact_exists", "contact with email %s already exists", email)
		}
	}
	id := t.nextID("CON")
	c := &Contact{ContactID: id, Name: name, Email: email, Phone: phone, CompanyID: companyID, DoNotContact: doNotContact, CreatedMs: t.bus.ClockMs()}
	t.contacts[id] = c
	if email != "" {
		t.emailIndex[key] = id
	}
	return map[string]any{"contact_id": id}, nil
}

// CreateCompany inserts a company, enforcing unique lowercased domain.
func (t *Twin) CreateCompany(name, domain string) (map[string]any, error) {
	key := strings.ToLower(domain)
	if domain != "" {
		if _, exists := t.domainIndex[key]; exists {
			return nil, router.Errorf("conflict.company_exists", "company with domain %s already exists", domain)
		}
	}
	id := t.nextID("CMP")
	c := &Company{CompanyID: id, Name: name, Domain: domain, CreatedMs: t.bus.ClockMs()}
	t.companies[id] = c
	if domain != "" {
		t.domainIndex[key] = id
	}
	return map[string]any{"company_id": id}, nil
}

// CreateDeal opens a deal at the given (or default New) stage.
func (t *Twin) CreateDeal(name, companyID, contactID, stage string, amountCents int64) (map[string]any, error) {
	if stage == "" {
		stage = StageNew
	}
	canonical, err := normalizeStage(stage)
	if err != nil {
		return nil, err
	}
	id := t.nextID("DEAL")
	now := t.bus.ClockMs()
	d := &Deal{DealID: id, Name: name, CompanyID: companyID, ContactID: contactID, Stage: canonical, AmountCents: amountCents, CreatedMs: now, UpdatedMs: now}
	t.deals[id] = d
	return map[string]any{"deal_id": id, "stage": canonical}, nil
}

// UpdateDealStage moves a deal to a new stage, enforcing the closed-is-sticky rule.
func (t *Twin) UpdateDealStage(dealID, stage string) (map[string]any, error) {
	d, ok := t.deals[dealID]
	if !ok {
		return nil, router.Errorf("unknown_deal", "unknown deal: %s", dealID)
	}
	canonical, err := normalizeStage(stage)
	if err != nil {
		return nil, err
	}
	if isClosed(d.Stage) && d.Stage != canonical {
		return nil, router.Errorf("invalid_stage_transition", "deal %s is closed (%s), cannot move to %s", dealID, d.Stage, canonical)
	}
	d.Stage = canonical
	d.UpdatedMs = t.bus.ClockMs()
	return map[string]any{"deal_id": dealID, "stage": canonical}, nil
}

// LogActivity records an activity, validating its kind and sampling a
// consent_violation fault for DNC outreach.
func (t *Twin) LogActivity(kind, contactID, note string) (map[string]any, error) {
	if !allowedActivityKinds[kind] {
		return nil, router.Errorf("invalid_activity_kind", "unrecognized activity kind: %s", kind)
	}
	if kind == "email_outreach" {
		if c, ok := t.contacts[contactID]; ok && c.DoNotContact {
			if t.rng.Float64() < t.errorRate {
				return nil, router.Errorf("consent_violation", "contact %s has opted out of outreach", contactID)
			}
		}
	}
	id := t.nextID("ACT")
	a := &Activity{ActivityID: id, Kind: kind, ContactID: contactID, Note: note, TimeMs: t.bus.ClockMs()}
	t.activities[id] = a
	return map[string]any{"activity_id": id}, nil
}

func (t *Twin) contactPayload(c *Contact) map[string]any {
	return map[string]any{
		"contact_id": c.ContactID, "name": c.Name, "email": c.Email, "phone": c.Phone,
		"company_id": c.CompanyID, "do_not_contact": c.DoNotContact, "created_ms": c.CreatedMs,
	}
}

func (t *Twin) companyPayload(c *Company) map[string]any {
	return map[string]any{"company_id": c.CompanyID, "name": c.Name, "domain": c.Domain, "created_ms": c.CreatedMs}
}

func (t *Twin) dealPayload(d *Deal) map[string]any {
	return map[string]any{
		"deal_id": d.DealID, "name": d.Name, "company_id": d.CompanyID, "contact_id": d.ContactID,
		"stage": d.Stage, "amount_cents": d.AmountCents, "created_ms": d.CreatedMs, "updated_ms": d.UpdatedMs,
	}
}

// ListContacts, ListCompanies, ListDeals return their respective collections,
// paginated per spec.md §4.3 unless legacy is set.
func (t *Twin) ListContacts(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.contacts))
	for id := range t.contacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.contactPayload(t.contacts[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "contact_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"contacts": rows}, nil
	}
	page, err := router.PageRows(rows, "contacts", args.Limit, args.Cursor, "crm.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

func (t *Twin) ListCompanies(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.companies))
	for id := range t.companies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.companyPayload(t.companies[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "company_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"companies": rows}, nil
	}
	page, err := router.PageRows(rows, "companies", args.Limit, args.Cursor, "crm.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

func (t *Twin) ListDeals(args router.ListArgs, stage string) (map[string]any, error) {
	ids := make([]string, 0, len(t.deals))
	for id := range t.deals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.dealPayload(t.deals[id]))
	}
	if stage != "" {
		canonical, err := normalizeStage(stage)
		if err != nil {
			return nil, err
		}
		filtered := rows[:0:0]
		for _, row := range rows {
			if row["stage"].(string) == canonical {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "deal_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"deals": rows}, nil
	}
	page, err := router.PageRows(rows, "deals", args.Limit, args.Cursor, "crm.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Deliver applies a scheduled CRM event. Explicit op routes to the matching
// mutation; absent op with a name-bearing payload creates a contact.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	switch op {
	case "update_deal_stage":
		dealID, _ := payload["deal_id"].(string)
		stage, _ := payload["stage"].(string)
		return t.UpdateDealStage(dealID, stage)
	case "log_activity":
		kind, _ := payload["kind"].(string)
		contactID, _ := payload["contact_id"].(string)
		note, _ := payload["note"].(string)
		return t.LogActivity(kind, contactID, note)
	case "create_company":
		name, _ := payload["name"].(string)
		domain, _ := payload["domain"].(string)
		return t.CreateCompany(name, domain)
	case "create_deal":
		name, _ := payload["name"].(string)
		companyID, _ := payload["company_id"].(string)
		contactID, _ := payload["contact_id"].(string)
		stage, _ := payload["stage"].(string)
		amount, _ := router.ArgInt64(payload["amount_cents"])
		return t.CreateDeal(name, companyID, contactID, stage, amount)
	default:
		name, _ := payload["name"].(string)
		email, _ := payload["email"].(string)
		if name == "" {
			return nil, router.NewError("invalid_args", "crm delivery requires a recognized op or contact name")
		}
		phone, _ := payload["phone"].(string)
		companyID, _ := payload["company_id"].(string)
		dnc, _ := payload["do_not_contact"].(bool)
		return t.CreateContact(name, email, phone, companyID, dnc)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "crm.list_contacts", Description: "List contacts.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "crm.create_contact", Description: "Create a contact.", SideEffects: []string{"crm_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("name")},
		{Name: "crm.list_companies", Description: "List companies.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "crm.create_company", Description: "Create a company.", SideEffects: []string{"crm_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("name")},
		{Name: "crm.list_deals", Description: "List deals, optionally by stage.", DefaultLatencyMs: 130, LatencyJitterMs: 40},
		{Name: "crm.create_deal", Description: "Open a deal.", SideEffects: []string{"crm_mutation"}, DefaultLatencyMs: 190, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("name")},
		{Name: "crm.update_deal_stage", Description: "Move a deal to a new stage.", SideEffects: []string{"crm_mutation"}, DefaultLatencyMs: 160, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("deal_id", "stage")},
		{Name: "crm.log_activity", Description: "Log a CRM activity.", SideEffects: []string{"crm_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, FaultProbability: 0, InputSchema: router.RequiredSchema("contact_id", "note")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"crm."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	return map[string]any{
		"contact_count":  len(t.contacts),
		"company_count":  len(t.companies),
		"deal_count":     len(t.deals),
		"activity_count": len(t.activities),
	}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "crm.list_contacts":
		return t.ListContacts(router.ListArgsFromMap(args))
	case "crm.create_contact":
		n, _ := args["name"].(string)
		email, _ := args["email"].(string)
		phone, _ := args["phone"].(string)
		companyID, _ := args["company_id"].(string)
		dnc, _ := args["do_not_contact"].(bool)
		return t.CreateContact(n, email, phone, companyID, dnc)
	case "crm.list_companies":
		return t.ListCompanies(router.ListArgsFromMap(args))
	case "crm.create_company":
		n, _ := args["name"].(string)
		domain, _ := args["domain"].(string)
		return t.CreateCompany(n, domain)
	case "crm.list_deals":
		stage, _ := args["stage"].(string)
		return t.ListDeals(router.ListArgsFromMap(args), stage)
	case "crm.create_deal":
		n, _ := args["name"].(string)
		companyID, _ := args["company_id"].(string)
		contactID, _ := args["contact_id"].(string)
		stage, _ := args["stage"].(string)
		amount, _ := router.ArgInt64(args["amount_cents"])
		return t.CreateDeal(n, companyID, contactID, stage, amount)
	case "crm.update_deal_stage":
		dealID, _ := args["deal_id"].(string)
		stage, _ := args["stage"].(string)
		return t.UpdateDealStage(dealID, stage)
	case "crm.log_activity":
		kind, _ := args["kind"].(string)
		contactID, _ := args["contact_id"].(string)
		note, _ := args["note"].(string)
		return t.LogActivity(kind, contactID, note)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
