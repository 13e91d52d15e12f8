// Package servicedesk implements the Service Desk twin (spec.md §4.3.10):
// incidents and requests, each with a simple status machine; requests
// additionally carry an approval_stage/approval_status pair.
package servicedesk

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// IncidentStatus is the incident lifecycle state.
type IncidentStatus string

const (
	IncidentNew        IncidentStatus = "new"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentMitigated   IncidentStatus = "mitigated"
	IncidentResolved    IncidentStatus = "resolved"
)

var incidentTransitions = map[IncidentStatus]map[IncidentStatus]bool{
	IncidentNew:           {IncidentInvestigating: true},
	IncidentInvestigating: {IncidentMitigated: true, IncidentResolved: true},
	IncidentMitigated:     {IncidentResolved: true, IncidentInvestigating: true},
	IncidentResolved:      {IncidentInvestigating: true},
}

// RequestStatus is the request lifecycle state.
type RequestStatus string

const (
	RequestSubmitted RequestStatus = "submitted"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

var requestTransitions = map[RequestStatus]map[RequestStatus]bool{
	RequestSubmitted: {RequestApproved: true, RequestRejected: true},
	RequestApproved:  {RequestFulfilled: true},
}

// ApprovalStage/ApprovalStatus track a request's approval workflow independently
// of its fulfillment status.
type ApprovalStage string

const (
	ApprovalStagePending  ApprovalStage = "pending"
	ApprovalStageManager  ApprovalStage = "manager_review"
	ApprovalStageFinal    ApprovalStage = "final_review"
	ApprovalStageComplete ApprovalStage = "complete"
)

type ApprovalStatus string

const (
	ApprovalStatusWaiting  ApprovalStatus = "waiting"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDenied   ApprovalStatus = "denied"
)

// Incident is the twin's incident record.
type Incident struct {
	IncidentID string
	Title      string
	Severity   string
	Status     IncidentStatus
	CreatedMs  int64
	UpdatedMs  int64
}

// Request is the twin's service-request record.
type Request struct {
	RequestID      string
	Title          string
	Requester      string
	Status         RequestStatus
	ApprovalStage  ApprovalStage
	ApprovalStatus ApprovalStatus
	CreatedMs      int64
	UpdatedMs      int64
}

// Twin implements bus.Receiver and router.ToolProvider for the "servicedesk." prefix.
type Twin struct {
	bus        *bus.Bus
	incidents  map[string]*Incident
	requests   map[string]*Request
	incSeq, reqSeq int
}

// New constructs a Service Desk twin.
func New(b *bus.Bus) *Twin {
	return &Twin{bus: b, incidents: make(map[string]*Incident), requests: make(map[string]*Request), incSeq: 1, reqSeq: 1}
}

func (t *Twin) incidentPayload(i *Incident) map[string]any {
	return map[string]any{
		"incident_id": i.IncidentID, "title": i.Title, "severity": i.Severity,
		"status": string(i.Status), "created_ms": i.CreatedMs, "updated_ms": i.UpdatedMs,
	}
}

func (t *Twin) requestPayload(r *Request) map[string]any {
	return map[string]any{
		"request_id": r.RequestID, "title": r.Title, "requester": r.Requester,
		"status": string(r.Status), "approval_stage": string(r.ApprovalStage),
		"approval_status": string(r.ApprovalStatus), "created_ms": r.CreatedMs, "updated_ms": r.UpdatedMs,
	}
}

// CreateIncident opens a new incident in status "new".
func (t *Twin) CreateIncident(title, severity string) (map[string]any, error) {
	id := fmt.Sprintf("INC-%d", t.incSeq)
	t.incSeq++
	now := t.bus.ClockMs()
	t.incidents[id] = &Incident{IncidentID: id, Title: title, Severity: severity, Status: IncidentNew, CreatedMs: now, UpdatedMs: now}
	return map[string]any{"incident_id": id, "status": string(IncidentNew)}, nil
}

// TransitionIncident moves an incident through its status machine.
func (t *Twin) TransitionIncident(incidentID string, next IncidentStatus) (map[string]any, error) {
	inc, ok := t.incidents[incidentID]
	if !ok {
		return nil, router.Errorf("unknown_incident", "unknown incident: %s", incidentID)
	}
	if !incidentTransitions[inc.Status][next] {
		return nil, router.Errorf("invalid_transition", "cannot move incident from %s to %s", inc.Status, next)
	}
	inc.Status = next
	inc.UpdatedMs = t.bus.ClockMs()
	return map[string]any{"incident_id": incidentID, "status": string(next)}, nil
}

// CreateRequest opens a new request awaiting approval.
func (t *Twin) CreateRequest(title, requester string) (map[string]any, error) {
	id := fmt.Sprintf("REQ-%d", t.reqSeq)
	t.reqSeq++
	now := t.bus.ClockMs()
	t.requests[id] = &Request{
		RequestID: id, Title: title, Requester: requester, Status: RequestSubmitted,
		ApprovalStage: ApprovalStagePending, ApprovalStatus: ApprovalStatusWaiting, CreatedMs: now, UpdatedMs: now,
	}
	return map[string]any{"request_id": id, "status": string(RequestSubmitted)}, nil
}

// TransitionRequest moves a request through its fulfillment status machine.
func (t *Twin) TransitionRequest(requestID string, next RequestStatus) (map[string]any, error) {
	r, ok := t.requests[requestID]
	if !ok {
		return nil, router.Errorf("unknown_request", "unknown request: %s", requestID)
	}
	if !requestTransitions[r.Status][next] {
		return nil, router.Errorf("invalid_transition", "cannot move request from %s to %s", r.Status, next)
	}
	r.Status = next
	r.UpdatedMs = t.bus.ClockMs()
	return map[string]any{"request_id": requestID, "status": string(next)}, nil
}

// UpdateApproval advances the request's approval stage/status independently
// of its fulfillment status.
func (t *Twin) UpdateApproval(requestID string, stage ApprovalStage, status ApprovalStatus) (map[string]any, error) {
	r, ok := t.requests[requestID]
	if !ok {
		return nil, router.Errorf("unknown_request", "unknown request: %s", requestID)
	}
	r.ApprovalStage = stage
	r.ApprovalStatus = status
	r.UpdatedMs = t.bus.ClockMs()
	if status == ApprovalStatusApproved && r.Status == RequestSubmitted {
		r.Status = RequestApproved
	}
	if status == ApprovalStatusDenied && r.Status == RequestSubmitted {
		r.Status = RequestRejected
	}
	return t.requestPayload(r), nil
}

// ListIncidents returns incidents, paginated unless legacy is set.
func (t *Twin) ListIncidents(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.incidents))
	for id := range t.incidents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.incidentPayload(t.incidents[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "incident_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"incidents": rows}, nil
	}
	page, err := router.PageRows(rows, "incidents", args.Limit, args.Cursor, "servicedesk.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// ListRequests returns requests, paginated unless legacy is set.
func (t *Twin) ListRequests(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.requests))
	for id := range t.requests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.requestPayload(t.requests[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "request_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"requests": rows}, nil
	}
	page, err := router.PageRows(rows, "requests", args.Limit, args.Cursor, "servicedesk.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Deliver applies a scheduled service desk event, dispatching on an explicit op.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	switch op {
	case "transition_incident":
		id, _ := payload["incident_id"].(string)
		status, _ := payload["status"].(string)
		return t.TransitionIncident(id, IncidentStatus(status))
	case "transition_request":
		id, _ := payload["request_id"].(string)
		status, _ := payload["status"].(string)
		return t.TransitionRequest(id, RequestStatus(status))
	case "update_approval":
		id, _ := payload["request_id"].(string)
		stage, _ := payload["approval_stage"].(string)
		status, _ := payload["approval_status"].(string)
		return t.UpdateApproval(id, ApprovalStage(stage), ApprovalStatus(status))
	case "create_request":
		title, _ := payload["title"].(string)
		requester, _ := payload["requester"].(string)
		return t.CreateRequest(title, requester)
	default:
		title, _ := payload["title"].(string)
		if title == "" {
			return nil, router.NewError("invalid_args", "servicedesk delivery requires a recognized op or an incident title")
		}
		severity, _ := payload["severity"].(string)
		return t.CreateIncident(title, severity)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "servicedesk.list_incidents", Description: "List incidents.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "servicedesk.create_incident", Description: "Open an incident.", SideEffects: []string{"servicedesk_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("title")},
		{Name: "servicedesk.transition_incident", Description: "Advance an incident's status.", SideEffects: []string{"servicedesk_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("incident_id", "status")},
		{Name: "servicedesk.list_requests", Description: "List requests.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "servicedesk.create_request", Description: "Submit a request.", SideEffects: []string{"servicedesk_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("title")},
		{Name: "servicedesk.transition_request", Description: "Advance a request's fulfillment status.", SideEffects: []string{"servicedesk_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("request_id", "status")},
		{Name: "servicedesk.update_approval", Description: "Advance a request's approval stage/status.", SideEffects: []string{"servicedesk_mutation"}, DefaultLatencyMs: 160, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("request_id", "approval_stage", "approval_status")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"servicedesk."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	incidents := make(map[string]any, len(t.incidents))
	for id, i := range t.incidents {
		incidents[id] = map[string]any{"status": string(i.Status), "severity": i.Severity}
	}
	requests := make(map[string]any, len(t.requests))
	for id, rq := range t.requests {
		requests[id] = map[string]any{"status": string(rq.Status), "approval_status": string(rq.ApprovalStatus)}
	}
	return map[string]any{"incidents": incidents, "requests": requests}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "servicedesk.list_incidents":
		return t.ListIncidents(router.ListArgsFromMap(args))
	case "servicedesk.create_incident":
		title, _ := args["title"].(string)
		severity, _ := args["severity"].(string)
		return t.CreateIncident(title, severity)
	case "servicedesk.transition_incident":
		id, _ := args["incident_id"].(string)
		status, _ := args["status"].(string)
		return t.TransitionIncident(id, IncidentStatus(status))
	case "servicedesk.list_requests":
		return t.ListRequests(router.ListArgsFromMap(args))
	case "servicedesk.create_request":
		title, _ := args["title"].(string)
		requester, _ := args["requester"].(string)
		return t.CreateRequest(title, requester)
	case "servicedesk.transition_request":
		id, _ := args["request_id"].(string)
		status, _ := args["status"].(string)
		return t.TransitionRequest(id, RequestStatus(status))
	case "servicedesk.update_approval":
		id, _ := args["request_id"].(string)
		stage, _ := args["approval_stage"].(string)
		status, _ := args["approval_status"].(string)
		return t.UpdateApproval(id, ApprovalStage(stage), ApprovalStatus(status))
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
