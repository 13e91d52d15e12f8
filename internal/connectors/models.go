// Package connectors implements the Connector Runtime (spec.md §4.4): a
// policy-gated dispatcher that wraps every twin in a {sim, replay, live}
// adapter triplet and records a redacted, append-only receipt per call.
package connectors

// AdapterMode selects which adapter in a service's triplet handles a call.
type AdapterMode string

const (
	ModeSim    AdapterMode = "sim"
	ModeReplay AdapterMode = "replay"
	ModeLive   AdapterMode = "live"
)

// OperationClass governs how the policy gate treats a call in live mode.
type OperationClass string

const (
	OpRead       OperationClass = "read"
	OpWriteSafe  OperationClass = "write_safe"
	OpWriteRisky OperationClass = "write_risky"
)

// ServiceName identifies a twin for routing and policy purposes.
type ServiceName string

const (
	ServiceSlack       ServiceName = "slack"
	ServiceMail        ServiceName = "mail"
	ServiceCalendar    ServiceName = "calendar"
	ServiceDocs        ServiceName = "docs"
	ServiceTickets     ServiceName = "tickets"
	ServiceDB          ServiceName = "db"
	ServiceERP         ServiceName = "erp"
	ServiceCRM         ServiceName = "crm"
	ServiceOkta        ServiceName = "okta"
	ServiceServiceDesk ServiceName = "servicedesk"
	ServiceBrowser     ServiceName = "browser"
)

// ConnectorError is the structured failure shape an adapter returns.
type ConnectorError struct {
	Code      string
	Message   string
	Retryable bool
	Detail    map[string]any
}

// ConnectorRequest is the typed envelope passed to the policy gate and adapters.
type ConnectorRequest struct {
	RequestID      string
	Service        ServiceName
	Operation      string
	OperationClass OperationClass
	Payload        map[string]any
	Actor          string
	Metadata       map[string]any
}

// ConnectorResult is an adapter's typed response.
type ConnectorResult struct {
	OK        bool
	StatusCode int
	Data      map[string]any
	Raw       map[string]any
	Error     *ConnectorError
	LatencyMs int64
	Metadata  map[string]any
}

// PolicyDecisionAction is the gate's verdict.
type PolicyDecisionAction string

const (
	ActionAllow           PolicyDecisionAction = "allow"
	ActionDeny            PolicyDecisionAction = "deny"
	ActionRequireApproval PolicyDecisionAction = "require_approval"
)

// PolicyDecision is the gate's typed verdict plus rationale.
type PolicyDecision struct {
	Action PolicyDecisionAction
	Reason string
}

// PolicyGate evaluates a request under a runtime mode.
type PolicyGate interface {
	Evaluate(req ConnectorRequest, mode AdapterMode) PolicyDecision
}

// ConnectorReceipt is the append-only, redacted audit record of one call.
type ConnectorReceipt struct {
	RequestID      string
	Mode           AdapterMode
	Service        ServiceName
	Operation      string
	OperationClass OperationClass
	PolicyAction   PolicyDecisionAction
	OK             bool
	StatusCode     int
	RequestPayload  map[string]any
	ResponsePayload map[string]any
	LatencyMs      int64
	TimeMs         int64
	Metadata       map[string]any
}

// ToMap renders the receipt in the wire shape spec.md §6 defines for the
// trace's receipt lines: {request_id, mode, service, operation,
// operation_class, policy_action, ok, status_code, request_payload,
// response_payload, latency_ms, time_ms, metadata}.
func (rc ConnectorReceipt) ToMap() map[string]any {
	return map[string]any{
		"request_id":       rc.RequestID,
		"mode":             rc.Mode,
		"service":          rc.Service,
		"operation":        rc.Operation,
		"operation_class":  rc.OperationClass,
		"policy_action":    rc.PolicyAction,
		"ok":               rc.OK,
		"status_code":      rc.StatusCode,
		"request_payload":  rc.RequestPayload,
		"response_payload": rc.ResponsePayload,
		"latency_ms":       rc.LatencyMs,
		"time_ms":          rc.TimeMs,
		"metadata":         rc.Metadata,
	}
}

// InvocationError is raised by the runtime itself (routing/policy/adapter failures).
type InvocationError struct {
	Code       string
	Message    string
	StatusCode int
	Detail     map[string]any
}

func (e *InvocationError) Error() string { return e.Message }
