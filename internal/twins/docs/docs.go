// Package docs implements the Docs twin (spec.md §4.3.4): CRUD with status
// and a monotonically increasing version on every mutation.
package docs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Status is the document lifecycle state (spec.md §3).
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// Document is the twin's entity record.
type Document struct {
	DocID     string
	Title     string
	Body      string
	Tags      []string
	Owner     string
	Status    Status
	Version   int
	CreatedMs int64
	UpdatedMs int64
}

// Seed is the construction-time shape for scenario-provided documents.
type Seed struct {
	DocID string   `json:"doc_id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
	Owner string   `json:"owner"`
}

// Twin implements bus.Receiver and router.ToolProvider for the "docs." prefix.
type Twin struct {
	clock *clockSource
	docs  map[string]*Document
	seq   int
}

// clockSource lets the twin read the bus's current time without owning it.
type clockSource struct {
	b *bus.Bus
}

func (c *clockSource) now() int64 { return c.b.ClockMs() }

// New constructs a Docs twin, optionally pre-seeded from a scenario.
func New(b *bus.Bus, seeds []Seed) *Twin {
	t := &Twin{
		clock: &clockSource{b: b},
		docs:  make(map[string]*Document),
		seq:   1,
	}
	now := t.clock.now()
	for _, s := range seeds {
		t.docs[s.DocID] = &Document{
			DocID: s.DocID, Title: s.Title, Body: s.Body, Tags: s.Tags,
			Owner: s.Owner, Status: StatusActive, Version: 1,
			CreatedMs: now, UpdatedMs: now,
		}
	}
	t.seq = t.nextSeqAfterSeed()
	return t
}

func (t *Twin) nextSeqAfterSeed() int {
	seq := 1
	for id := range t.docs {
		if n, ok := parseSuffix(id, "DOC-"); ok && n+1 > seq {
			seq = n + 1
		}
	}
	return seq
}

func parseSuffix(id, prefix string) (int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (t *Twin) payload(d *Document) map[string]any {
	return map[string]any{
		"doc_id":     d.DocID,
		"title":      d.Title,
		"body":       d.Body,
		"tags":       d.Tags,
		"owner":      d.Owner,
		"status":     string(d.Status),
		"version":    d.Version,
		"created_ms": d.CreatedMs,
		"updated_ms": d.UpdatedMs,
	}
}

// List returns every document, paginated per spec.md §4.3 unless legacy is set.
func (t *Twin) List(args router.ListArgs) (map[string]any, error) {
	rows := make([]map[string]any, 0, len(t.docs))
	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rows = append(rows, t.payload(t.docs[id]))
	}
	if args.Query != "" {
		needle := strings.ToLower(args.Query)
		filtered := rows[:0:0]
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row["title"].(string)), needle) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "doc_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"docs": rows}, nil
	}
	page, err := router.PageRows(rows, "docs", args.Limit, args.Cursor, "docs.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Read returns a single document's full body.
func (t *Twin) Read(docID string) (map[string]any, error) {
	d, ok := t.docs[docID]
	if !ok {
		return nil, router.Errorf("unknown_document", "unknown document: %s", docID)
	}
	return t.payload(d), nil
}

// Create inserts a new document at version 1, status DRAFT.
func (t *Twin) Create(title, body string, tags []string, owner string) (map[string]any, error) {
	docID := fmt.Sprintf("DOC-%d", t.seq)
	t.seq++
	now := t.clock.now()
	d := &Document{
		DocID: docID, Title: title, Body: body, Tags: tags, Owner: owner,
		Status: StatusDraft, Version: 1, CreatedMs: now, UpdatedMs: now,
	}
	t.docs[docID] = d
	return map[string]any{"doc_id": docID, "title": title}, nil
}

// Update mutates the given fields, bumping version/updated_ms.
func (t *Twin) Update(docID string, title, body *string, tags []string, status *Status) (map[string]any, error) {
	d, ok := t.docs[docID]
	if !ok {
		return nil, router.Errorf("unknown_document", "unknown document: %s", docID)
	}
	changed := false
	if title != nil {
		d.Title = *title
		changed = true
	}
	if body != nil {
		d.Body = *body
		changed = true
	}
	if tags != nil {
		d.Tags = tags
		changed = true
	}
	if status != nil {
		d.Status = *status
		changed = true
	}
	if changed {
		d.Version++
		d.UpdatedMs = t.clock.now()
	}
	return t.payload(d), nil
}

// Search ranks documents by token hit count in title/body, stable tiebreak
// on title (spec.md §4.3.4).
func (t *Twin) Search(query string) []map[string]any {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	type hit struct {
		doc   *Document
		score int
	}
	var hits []hit
	for _, d := range t.docs {
		title, body := strings.ToLower(d.Title), strings.ToLower(d.Body)
		score := 0
		for _, token := range strings.Fields(needle) {
			score += strings.Count(title, token) + strings.Count(body, token)
		}
		if score > 0 {
			hits = append(hits, hit{d, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.Title < hits[j].doc.Title
	})
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{"doc_id": h.doc.DocID, "title": h.doc.Title})
	}
	return out
}

// Deliver applies a scheduled docs event. An explicit op is authoritative;
// an id-presence heuristic is only a fallback when op is absent
// (SPEC_FULL.md §4, Open Question 1).
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	docID, hasDocID := payload["doc_id"].(string)

	isUpdate := op == "update"
	if op == "" && hasDocID {
		if _, exists := t.docs[docID]; exists {
			isUpdate = true
		}
	}

	if isUpdate {
		if !hasDocID {
			return nil, router.NewError("invalid_args", "docs update delivery requires doc_id")
		}
		var title, body *string
		var tags []string
		if v, ok := payload["title"].(string); ok {
			title = &v
		}
		if v, ok := payload["body"].(string); ok {
			body = &v
		}
		if v, ok := router.ArgStringSlice(payload["tags"]); ok {
			tags = v
		}
		return t.Update(docID, title, body, tags, nil)
	}

	title, _ := payload["title"].(string)
	body, _ := payload["body"].(string)
	if title == "" || body == "" {
		return nil, router.NewError("invalid_args", "docs delivery requires title/body for create")
	}
	tags, _ := router.ArgStringSlice(payload["tags"])
	owner, _ := payload["owner"].(string)
	return t.Create(title, body, tags, owner)
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "docs.list", Description: "List documents.", Permissions: []string{"docs:read"}, DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "docs.read", Description: "Read a document's full body.", Permissions: []string{"docs:read"}, DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "docs.create", Description: "Create a new document.", Permissions: []string{"docs:write"}, SideEffects: []string{"doc_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("title")},
		{Name: "docs.update", Description: "Update a document's fields.", Permissions: []string{"docs:write"}, SideEffects: []string{"doc_mutation"}, DefaultLatencyMs: 160, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("doc_id")},
		{Name: "docs.search", Description: "Search documents by token overlap.", Permissions: []string{"docs:read"}, DefaultLatencyMs: 140, LatencyJitterMs: 40},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"docs."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	docs := make(map[string]any, len(t.docs))
	for id, d := range t.docs {
		docs[id] = map[string]any{
			"title": d.Title, "tags": d.Tags, "status": string(d.Status), "version": d.Version,
		}
	}
	return map[string]any{"docs": docs}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "docs.list":
		return t.List(router.ListArgsFromMap(args))
	case "docs.read":
		docID, _ := args["doc_id"].(string)
		return t.Read(docID)
	case "docs.create":
		title, _ := args["title"].(string)
		body, _ := args["body"].(string)
		tags, _ := router.ArgStringSlice(args["tags"])
		owner, _ := args["owner"].(string)
		return t.Create(title, body, tags, owner)
	case "docs.update":
		docID, _ := args["doc_id"].(string)
		var title, body *string
		if v, ok := args["title"].(string); ok {
			title = &v
		}
		if v, ok := args["body"].(string); ok {
			body = &v
		}
		tags, _ := router.ArgStringSlice(args["tags"])
		var status *Status
		if v, ok := args["status"].(string); ok {
			s := Status(v)
			status = &s
		}
		return t.Update(docID, title, body, tags, status)
	case "docs.search":
		query, _ := args["query"].(string)
		return map[string]any{"results": t.Search(query)}, nil
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
