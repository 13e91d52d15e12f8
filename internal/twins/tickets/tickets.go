// Package tickets implements the Tickets twin (spec.md §4.3.6): a strict
// status transition table plus append-only comments.
package tickets

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Status is a ticket lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// transitions is the fixed table from spec.md §4.3.6. Any edge not listed
// here is invalid_transition.
var transitions = map[Status]map[Status]bool{
	StatusOpen:       {StatusInProgress: true, StatusBlocked: true, StatusResolved: true, StatusClosed: true},
	StatusInProgress: {StatusBlocked: true, StatusResolved: true, StatusClosed: true},
	StatusBlocked:    {StatusOpen: true, StatusInProgress: true, StatusResolved: true, StatusClosed: true},
	StatusResolved:   {StatusClosed: true, StatusOpen: true, StatusInProgress: true},
	StatusClosed:     {StatusOpen: true},
}

// Comment is an append-only note on a ticket.
type Comment struct {
	CommentID string
	Author    string
	Body      string
	TimeMs    int64
}

// Ticket is the twin's entity record.
type Ticket struct {
	TicketID    string
	Title       string
	Description string
	Assignee    string
	Status      Status
	Priority    string
	Severity    string
	Labels      []string
	Comments    []Comment
	History     []map[string]any
}

// Twin implements bus.Receiver and router.ToolProvider for the "tickets." prefix.
type Twin struct {
	bus      *bus.Bus
	tickets  map[string]*Ticket
	seq      int
	commentSeq int
}

// New constructs a Tickets twin.
func New(b *bus.Bus) *Twin {
	return &Twin{bus: b, tickets: make(map[string]*Ticket), seq: 1, commentSeq: 1}
}

func (t *Twin) payload(tk *Ticket) map[string]any {
	comments := make([]map[string]any, 0, len(tk.Comments))
	for _, c := range tk.Comments {
		comments = append(comments, map[string]any{
			"comment_id": c.CommentID, "author": c.Author, "body": c.Body, "time_ms": c.TimeMs,
		})
	}
	return map[string]any{
		"ticket_id":   tk.TicketID,
		"title":       tk.Title,
		"description": tk.Description,
		"assignee":    tk.Assignee,
		"status":      string(tk.Status),
		"priority":    tk.Priority,
		"severity":    tk.Severity,
		"labels":      tk.Labels,
		"comments":    comments,
		"history":     tk.History,
	}
}

// Create opens a new ticket in status "open".
func (t *Twin) Create(title, description, assignee, priority, severity string, labels []string) (map[string]any, error) {
	id := fmt.Sprintf("TCK-%d", t.seq)
	t.seq++
	tk := &Ticket{
		TicketID: id, Title: title, Description: description, Assignee: assignee,
		Status: StatusOpen, Priority: priority, Severity: severity, Labels: labels,
		History: []map[string]any{{"status": string(StatusOpen), "time_ms": t.bus.ClockMs()}},
	}
	t.tickets[id] = tk
	return map[string]any{"ticket_id": id, "status": string(StatusOpen)}, nil
}

// Get returns a single ticket.
func (t *Twin) Get(ticketID string) (map[string]any, error) {
	tk, ok := t.tickets[ticketID]
	if !ok {
		return nil, router.Errorf("unknown_ticket", "unknown ticket: %s", ticketID)
	}
	return t.payload(tk), nil
}

// Update mutates non-lifecycle fields.
func (t *Twin) Update(ticketID string, assignee *string, labels []string) (map[string]any, error) {
	tk, ok := t.tickets[ticketID]
	if !ok {
		return nil, router.Errorf("unknown_ticket", "unknown ticket: %s", ticketID)
	}
	if assignee != nil {
		tk.Assignee = *assignee
	}
	if labels != nil {
		tk.Labels = labels
	}
	tk.History = append(tk.History, map[string]any{"status": string(tk.Status), "update": "fields", "time_ms": t.bus.ClockMs()})
	return t.payload(tk), nil
}

// Transition applies a status edge, enforcing the fixed transition table.
func (t *Twin) Transition(ticketID string, next Status) (map[string]any, error) {
	tk, ok := t.tickets[ticketID]
	if !ok {
		return nil, router.Errorf("unknown_ticket", "unknown ticket: %s", ticketID)
	}
	if !transitions[tk.Status][next] {
		return nil, router.Errorf("invalid_transition", "cannot move ticket from %s to %s", tk.Status, next)
	}
	tk.Status = next
	tk.History = append(tk.History, map[string]any{"status": string(next), "time_ms": t.bus.ClockMs()})
	return map[string]any{"ticket_id": ticketID, "status": string(next)}, nil
}

// AddComment appends a comment with a synthesized CMT-NNNN id.
func (t *Twin) AddComment(ticketID, author, body string) (map[string]any, error) {
	tk, ok := t.tickets[ticketID]
	if !ok {
		return nil, router.Errorf("unknown_ticket", "unknown ticket: %s", ticketID)
	}
	commentID := fmt.Sprintf("CMT-%04d", t.commentSeq)
	t.commentSeq++
	tk.Comments = append(tk.Comments, Comment{CommentID: commentID, Author: author, Body: body, TimeMs: t.bus.ClockMs()})
	return map[string]any{"comment_id": commentID}, nil
}

// List returns tickets, paginated per spec.md §4.3 unless legacy is set.
func (t *Twin) List(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.tickets))
	for id := range t.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.payload(t.tickets[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "ticket_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"tickets": rows}, nil
	}
	page, err := router.PageRows(rows, "tickets", args.Limit, args.Cursor, "tickets.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Deliver applies a scheduled ticket event. It reads no op field: a payload
// with a ticket_id and a status routes to a transition; a ticket_id without
// status routes to update; otherwise a title creates a new ticket.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	ticketID, hasID := payload["ticket_id"].(string)
	if hasID {
		if status, ok := payload["status"].(string); ok {
			return t.Transition(ticketID, Status(status))
		}
		var assignee *string
		if v, ok := payload["assignee"].(string); ok {
			assignee = &v
		}
		labels, _ := router.ArgStringSlice(payload["labels"])
		return t.Update(ticketID, assignee, labels)
	}
	title, _ := payload["title"].(string)
	if title == "" {
		return nil, router.NewError("invalid_args", "tickets delivery requires title to create")
	}
	description, _ := payload["description"].(string)
	assignee, _ := payload["assignee"].(string)
	return t.Create(title, description, assignee, "", "", nil)
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "tickets.list", Description: "List tickets.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "tickets.get", Description: "Fetch a single ticket.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "tickets.create", Description: "Open a new ticket.", SideEffects: []string{"ticket_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("title")},
		{Name: "tickets.update", Description: "Update ticket fields.", SideEffects: []string{"ticket_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("ticket_id")},
		{Name: "tickets.transition", Description: "Apply a status transition.", SideEffects: []string{"ticket_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("ticket_id", "status")},
		{Name: "tickets.add_comment", Description: "Append a comment.", SideEffects: []string{"ticket_mutation"}, DefaultLatencyMs: 130, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("ticket_id", "body")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"tickets."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	tickets := make(map[string]any, len(t.tickets))
	for id, tk := range t.tickets {
		tickets[id] = map[string]any{"status": string(tk.Status), "assignee": tk.Assignee, "labels": tk.Labels}
	}
	return map[string]any{"tickets": tickets}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "tickets.list":
		return t.List(router.ListArgsFromMap(args))
	case "tickets.get":
		id, _ := args["ticket_id"].(string)
		return t.Get(id)
	case "tickets.create":
		title, _ := args["title"].(string)
		description, _ := args["description"].(string)
		assignee, _ := args["assignee"].(string)
		priority, _ := args["priority"].(string)
		severity, _ := args["severity"].(string)
		labels, _ := router.ArgStringSlice(args["labels"])
		return t.Create(title, description, assignee, priority, severity, labels)
	case "tickets.update":
		id, _ := args["ticket_id"].(string)
		var assignee *string
		if v, ok := args["assignee"].(string); ok {
			assignee = &v
		}
		labels, _ := router.ArgStringSlice(args["labels"])
		return t.Update(id, assignee, labels)
	case "tickets.transition":
		id, _ := args["ticket_id"].(string)
		status, _ := args["status"].(string)
		return t.Transition(id, Status(status))
	case "tickets.add_comment":
		id, _ := args["ticket_id"].(string)
		author, _ := args["author"].(string)
		body, _ := args["body"].(string)
		return t.AddComment(id, author, body)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
