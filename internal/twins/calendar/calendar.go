// Package calendar implements the Calendar twin (spec.md §4.3.5): create,
// update, cancel, accept, decline, with cancelled events rejecting all writes.
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Status is the event lifecycle state (spec.md §3).
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusTentative Status = "TENTATIVE"
	StatusCanceled  Status = "CANCELED"
)

var validStatuses = map[Status]bool{StatusConfirmed: true, StatusTentative: true, StatusCanceled: true}

// Event is the twin's entity record.
type Event struct {
	EventID      string
	Title        string
	StartMs      int64
	EndMs        int64
	Attendees    []string
	Location     string
	Description  string
	Status       Status
	Organizer    string
	Version      int
	CreatedMs    int64
	UpdatedMs    int64
	CancelReason string
	Responses    map[string]string
}

// Seed is the construction-time shape for scenario-provided events.
type Seed struct {
	EventID     string   `json:"event_id"`
	Title       string   `json:"title"`
	StartMs     int64    `json:"start_ms"`
	EndMs       int64    `json:"end_ms"`
	Attendees   []string `json:"attendees,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Twin implements bus.Receiver and router.ToolProvider for the "calendar." prefix.
type Twin struct {
	bus    *bus.Bus
	events map[string]*Event
	seq    int
}

// New constructs a Calendar twin, optionally pre-seeded from a scenario.
func New(b *bus.Bus, seeds []Seed) *Twin {
	t := &Twin{bus: b, events: make(map[string]*Event)}
	now := b.ClockMs()
	for i, s := range seeds {
		created := now + int64(i) + 1
		t.events[s.EventID] = &Event{
			EventID: s.EventID, Title: s.Title, StartMs: s.StartMs, EndMs: s.EndMs,
			Attendees: s.Attendees, Location: s.Location, Description: s.Description,
			Status: StatusConfirmed, Organizer: "system", Version: 1,
			CreatedMs: created, UpdatedMs: created, Responses: map[string]string{},
		}
	}
	t.seq = t.nextSeq()
	return t
}

func (t *Twin) nextSeq() int {
	seq := 1
	for id := range t.events {
		if strings.HasPrefix(id, "EVT-") {
			if n, err := strconv.Atoi(strings.TrimPrefix(id, "EVT-")); err == nil && n+1 > seq {
				seq = n + 1
			}
		}
	}
	return seq
}

func (t *Twin) payload(e *Event) map[string]any {
	return map[string]any{
		"event_id":      e.EventID,
		"title":         e.Title,
		"start_ms":      e.StartMs,
		"end_ms":        e.EndMs,
		"attendees":     e.Attendees,
		"location":      e.Location,
		"description":   e.Description,
		"status":        string(e.Status),
		"organizer":     e.Organizer,
		"version":       e.Version,
		"created_ms":    e.CreatedMs,
		"updated_ms":    e.UpdatedMs,
		"cancel_reason": e.CancelReason,
		"responses":     e.Responses,
	}
}

// List returns calendar events, paginated unless legacy is set.
func (t *Twin) List(args router.ListArgs, attendee, status string, startsAfterMs, endsBeforeMs *int64) (map[string]any, error) {
	ids := make([]string, 0, len(t.events))
	for id := range t.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.payload(t.events[id]))
	}
	if attendee != "" {
		wanted := strings.ToLower(attendee)
		filtered := rows[:0:0]
		for _, row := range rows {
			for _, a := range row["attendees"].([]string) {
				if strings.ToLower(a) == wanted {
					filtered = append(filtered, row)
					break
				}
			}
		}
		rows = filtered
	}
	if status != "" {
		wanted := strings.ToUpper(status)
		filtered := rows[:0:0]
		for _, row := range rows {
			if row["status"].(string) == wanted {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if startsAfterMs != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row["start_ms"].(int64) >= *startsAfterMs {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if endsBeforeMs != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row["end_ms"].(int64) <= *endsBeforeMs {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	router.SortRows(rows, "start_ms", args.SortDir)
	if args.Legacy {
		return map[string]any{"events": rows}, nil
	}
	page, err := router.PageRows(rows, "events", args.Limit, args.Cursor, "calendar.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Create adds a new event.
func (t *Twin) Create(title string, startMs, endMs int64, attendees []string, location, description, organizer string, status Status) (map[string]any, error) {
	if status == "" {
		status = StatusConfirmed
	}
	if !validStatuses[status] {
		return nil, router.Errorf("invalid_args", "invalid event status: %s", status)
	}
	id := fmt.Sprintf("EVT-%d", t.seq)
	t.seq++
	now := t.bus.ClockMs()
	if organizer == "" {
		organizer = "agent"
	}
	e := &Event{
		EventID: id, Title: title, StartMs: startMs, EndMs: endMs, Attendees: attendees,
		Location: location, Description: description, Status: status, Organizer: organizer,
		Version: 1, CreatedMs: now, UpdatedMs: now, Responses: map[string]string{},
	}
	t.events[id] = e
	return map[string]any{"event_id": id, "status": string(status)}, nil
}

// Update mutates event fields. Rejected on a cancelled event.
func (t *Twin) Update(eventID string, title *string, startMs, endMs *int64, attendees []string, location, description *string, status *Status) (map[string]any, error) {
	e, ok := t.events[eventID]
	if !ok {
		return nil, router.Errorf("unknown_event", "unknown event: %s", eventID)
	}
	if e.Status == StatusCanceled {
		return nil, router.Errorf("invalid_state", "cannot update canceled event: %s", eventID)
	}
	changed := false
	if title != nil {
		e.Title = *title
		changed = true
	}
	if startMs != nil {
		e.StartMs = *startMs
		changed = true
	}
	if endMs != nil {
		e.EndMs = *endMs
		changed = true
	}
	if attendees != nil {
		e.Attendees = attendees
		changed = true
	}
	if location != nil {
		e.Location = *location
		changed = true
	}
	if description != nil {
		e.Description = *description
		changed = true
	}
	if status != nil {
		if !validStatuses[*status] {
			return nil, router.Errorf("invalid_args", "invalid event status: %s", *status)
		}
		if e.Status != *status {
			e.Status = *status
			changed = true
		}
	}
	if changed {
		e.Version++
		e.UpdatedMs = t.bus.ClockMs()
	}
	return t.payload(e), nil
}

// Cancel marks an event CANCELED; idempotent.
func (t *Twin) Cancel(eventID, reason string) (map[string]any, error) {
	e, ok := t.events[eventID]
	if !ok {
		return nil, router.Errorf("unknown_event", "unknown event: %s", eventID)
	}
	if e.Status == StatusCanceled {
		return map[string]any{"event_id": eventID, "status": string(StatusCanceled), "changed": false}, nil
	}
	if reason == "" {
		reason = "manual_cancel"
	}
	e.Status = StatusCanceled
	e.CancelReason = reason
	e.Version++
	e.UpdatedMs = t.bus.ClockMs()
	return map[string]any{"event_id": eventID, "status": string(StatusCanceled), "changed": true}, nil
}

// Accept/Decline record an attendee's response.
func (t *Twin) Accept(eventID, attendee string) (map[string]any, error) { return t.respond(eventID, attendee, "accepted") }
func (t *Twin) Decline(eventID, attendee string) (map[string]any, error) { return t.respond(eventID, attendee, "declined") }

func (t *Twin) respond(eventID, attendee, status string) (map[string]any, error) {
	e, ok := t.events[eventID]
	if !ok {
		return nil, router.Errorf("unknown_event", "unknown event: %s", eventID)
	}
	if e.Status == StatusCanceled {
		return nil, router.Errorf("invalid_state", "cannot respond to canceled event: %s", eventID)
	}
	if attendee != "" && len(e.Attendees) > 0 {
		found := false
		for _, a := range e.Attendees {
			if a == attendee {
				found = true
				break
			}
		}
		if !found {
			return nil, router.Errorf("invalid_args", "attendee %s not on event %s", attendee, eventID)
		}
	}
	e.Responses[attendee] = status
	return map[string]any{"event_id": eventID, "attendee": attendee, "status": status}, nil
}

// Deliver applies a scheduled calendar event. The explicit op field is
// authoritative (SPEC_FULL.md §4, Open Question 1).
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	if op == "" {
		op = "create"
	}
	switch op {
	case "update":
		eventID, _ := payload["event_id"].(string)
		if eventID == "" {
			return nil, router.NewError("invalid_args", "calendar update delivery requires event_id")
		}
		var title, location, description *string
		var startMs, endMs *int64
		var status *Status
		if v, ok := payload["title"].(string); ok {
			title = &v
		}
		if v, ok := router.ArgInt64(payload["start_ms"]); ok {
			startMs = &v
		}
		if v, ok := router.ArgInt64(payload["end_ms"]); ok {
			endMs = &v
		}
		if v, ok := payload["location"].(string); ok {
			location = &v
		}
		if v, ok := payload["description"].(string); ok {
			description = &v
		}
		if v, ok := payload["status"].(string); ok {
			s := Status(v)
			status = &s
		}
		attendees, _ := router.ArgStringSlice(payload["attendees"])
		return t.Update(eventID, title, startMs, endMs, attendees, location, description, status)
	case "cancel":
		eventID, _ := payload["event_id"].(string)
		if eventID == "" {
			return nil, router.NewError("invalid_args", "calendar cancel delivery requires event_id")
		}
		reason, _ := payload["reason"].(string)
		return t.Cancel(eventID, reason)
	default:
		title, _ := payload["title"].(string)
		startMs, okS := router.ArgInt64(payload["start_ms"])
		endMs, okE := router.ArgInt64(payload["end_ms"])
		if title == "" || !okS || !okE {
			return nil, router.NewError("invalid_args", "calendar delivery requires title/start_ms/end_ms")
		}
		attendees, _ := router.ArgStringSlice(payload["attendees"])
		location, _ := payload["location"].(string)
		description, _ := payload["description"].(string)
		organizer, _ := payload["organizer"].(string)
		status := StatusConfirmed
		if v, ok := payload["status"].(string); ok {
			status = Status(v)
		}
		return t.Create(title, startMs, endMs, attendees, location, description, organizer, status)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "calendar.list_events", Description: "List calendar events.", DefaultLatencyMs: 130, LatencyJitterMs: 40},
		{Name: "calendar.create_event", Description: "Create a calendar event.", SideEffects: []string{"calendar_mutation"}, DefaultLatencyMs: 200, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("title", "start_ms", "end_ms")},
		{Name: "calendar.update_event", Description: "Update a calendar event.", SideEffects: []string{"calendar_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("event_id")},
		{Name: "calendar.cancel_event", Description: "Cancel a calendar event.", SideEffects: []string{"calendar_mutation"}, DefaultLatencyMs: 170, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("event_id")},
		{Name: "calendar.accept", Description: "Accept an invite.", SideEffects: []string{"calendar_mutation"}, DefaultLatencyMs: 120, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("event_id", "attendee")},
		{Name: "calendar.decline", Description: "Decline an invite.", SideEffects: []string{"calendar_mutation"}, DefaultLatencyMs: 120, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("event_id", "attendee")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"calendar."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	events := make(map[string]any, len(t.events))
	for id, e := range t.events {
		events[id] = map[string]any{
			"title": e.Title, "start_ms": e.StartMs, "end_ms": e.EndMs,
			"attendees": e.Attendees, "status": string(e.Status), "version": e.Version,
		}
	}
	return map[string]any{"events": events}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "calendar.list_events":
		la := router.ListArgsFromMap(args)
		attendee, _ := args["attendee"].(string)
		status, _ := args["status"].(string)
		var startsAfter, endsBefore *int64
		if v, ok := router.ArgInt64(args["starts_after_ms"]); ok {
			startsAfter = &v
		}
		if v, ok := router.ArgInt64(args["ends_before_ms"]); ok {
			endsBefore = &v
		}
		return t.List(la, attendee, status, startsAfter, endsBefore)
	case "calendar.create_event":
		title, _ := args["title"].(string)
		startMs, _ := router.ArgInt64(args["start_ms"])
		endMs, _ := router.ArgInt64(args["end_ms"])
		attendees, _ := router.ArgStringSlice(args["attendees"])
		location, _ := args["location"].(string)
		description, _ := args["description"].(string)
		organizer, _ := args["organizer"].(string)
		status := Status("")
		if v, ok := args["status"].(string); ok {
			status = Status(v)
		}
		return t.Create(title, startMs, endMs, attendees, location, description, organizer, status)
	case "calendar.update_event":
		eventID, _ := args["event_id"].(string)
		var title, location, description *string
		var startMs, endMs *int64
		var status *Status
		if v, ok := args["title"].(string); ok {
			title = &v
		}
		if v, ok := router.ArgInt64(args["start_ms"]); ok {
			startMs = &v
		}
		if v, ok := router.ArgInt64(args["end_ms"]); ok {
			endMs = &v
		}
		if v, ok := args["location"].(string); ok {
			location = &v
		}
		if v, ok := args["description"].(string); ok {
			description = &v
		}
		if v, ok := args["status"].(string); ok {
			s := Status(v)
			status = &s
		}
		attendees, _ := router.ArgStringSlice(args["attendees"])
		return t.Update(eventID, title, startMs, endMs, attendees, location, description, status)
	case "calendar.cancel_event":
		eventID, _ := args["event_id"].(string)
		reason, _ := args["reason"].(string)
		return t.Cancel(eventID, reason)
	case "calendar.accept":
		eventID, _ := args["event_id"].(string)
		attendee, _ := args["attendee"].(string)
		return t.Accept(eventID, attendee)
	case "calendar.decline":
		eventID, _ := args["event_id"].(string)
		attendee, _ := args["attendee"].(string)
		return t.Decline(eventID, attendee)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
