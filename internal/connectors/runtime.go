package connectors

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/haasonsaas/vei/internal/router"
)

// maxReceipts bounds the in-memory receipt ring buffer, matching runtime.py.
const maxReceipts = 200

// Provider is the subset of router.ToolProvider the runtime needs to reach
// the sim adapter behind a service: a direct call into the twin.
type Provider interface {
	Call(name string, args map[string]any) (map[string]any, error)
}

// ReplayStore looks up a recorded response for a prior request, used under
// ModeReplay. Absent entries are a connector-level miss, not a twin error.
type ReplayStore interface {
	Lookup(service ServiceName, operation string, payload map[string]any) (map[string]any, bool)
}

// PolicyObserver receives a passive count of every policy verdict
// (internal/obs.Metrics.ObservePolicyDecision).
type PolicyObserver interface {
	ObservePolicyDecision(service, action string)
}

// LiveAdapter executes a request against a real external system. No service
// ships one by default: under LIVE mode a service with no registered
// LiveAdapter is served by its sim adapter, and the response is marked
// live_backend "simulated".
type LiveAdapter interface {
	Invoke(req ConnectorRequest) (map[string]any, error)
}

// Runtime is the Connector Runtime (spec.md §4.4): it looks up a tool's
// route, asks the policy gate whether the call may proceed under the
// configured mode, dispatches to the mode's adapter, and records a redacted
// receipt for every attempt, not just the successful ones.
type Runtime struct {
	mode         AdapterMode
	policy       PolicyGate
	routes       map[string]Route
	simAdapters  map[ServiceName]Provider
	replayStore  ReplayStore
	liveAdapters map[ServiceName]LiveAdapter
	receiptsPath string
	observer     PolicyObserver

	mu       sync.Mutex
	seq      map[ServiceName]int
	receipts []ConnectorReceipt
}

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption func(*Runtime)

// WithReplayStore attaches a ReplayStore consulted under ModeReplay.
func WithReplayStore(s ReplayStore) RuntimeOption {
	return func(r *Runtime) { r.replayStore = s }
}

// WithLiveAdapter registers a LiveAdapter for a service, consulted under ModeLive.
func WithLiveAdapter(service ServiceName, a LiveAdapter) RuntimeOption {
	return func(r *Runtime) { r.liveAdapters[service] = a }
}

// WithReceiptsPath enables append-only JSONL receipt flushing to a file.
func WithReceiptsPath(path string) RuntimeOption {
	return func(r *Runtime) { r.receiptsPath = path }
}

// WithRoutes overrides the default TOOL_ROUTES table.
func WithRoutes(routes map[string]Route) RuntimeOption {
	return func(r *Runtime) { r.routes = routes }
}

// WithPolicyObserver attaches a passive observer of every policy verdict.
func WithPolicyObserver(o PolicyObserver) RuntimeOption {
	return func(r *Runtime) { r.observer = o }
}

// NewRuntime constructs a Runtime in the given mode, wiring one sim adapter
// per service (create_default_runtime's sim half; spec.md's router is
// always driven in sim mode for its twins, with replay/live pluggable via
// options for evaluation harnesses).
func NewRuntime(mode AdapterMode, policy PolicyGate, simAdapters map[ServiceName]Provider, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		mode:         mode,
		policy:       policy,
		routes:       DefaultRoutes(),
		simAdapters:  simAdapters,
		liveAdapters: map[ServiceName]LiveAdapter{},
		seq:          map[ServiceName]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manages reports whether tool is routed through this runtime, satisfying
// router.ConnectorRuntime.
func (r *Runtime) Manages(tool string) bool {
	_, ok := r.routes[tool]
	return ok
}

func (r *Runtime) nextRequestID(service ServiceName) string {
	r.seq[service]++
	return fmt.Sprintf("%s-%06d", service, r.seq[service])
}

// Invoke dispatches tool through the policy gate and the mode's adapter,
// satisfying router.ConnectorRuntime.
func (r *Runtime) Invoke(tool string, args map[string]any, actor string, timeMs int64) (map[string]any, error) {
	route, ok := r.routes[tool]
	if !ok {
		return nil, &InvocationError{Code: "unknown_tool", Message: fmt.Sprintf("no route for tool %s", tool), StatusCode: 404}
	}

	r.mu.Lock()
	requestID := r.nextRequestID(route.Service)
	r.mu.Unlock()

	req := ConnectorRequest{
		RequestID:      requestID,
		Service:        route.Service,
		Operation:      route.Operation,
		OperationClass: route.OperationClass,
		Payload:        args,
		Actor:          actor,
	}

	decision := r.policy.Evaluate(req, r.mode)
	if r.observer != nil {
		r.observer.ObservePolicyDecision(string(req.Service), string(decision.Action))
	}
	switch decision.Action {
	case ActionDeny:
		r.recordReceipt(req, decision.Action, nil, false, 403, timeMs)
		return nil, &InvocationError{Code: "policy.denied", Message: decision.Reason, StatusCode: 403}
	case ActionRequireApproval:
		r.recordReceipt(req, decision.Action, nil, false, 403, timeMs)
		return nil, &InvocationError{Code: "policy.approval_required", Message: decision.Reason, StatusCode: 403}
	}

	response, err := r.dispatch(tool, req)
	ok2 := err == nil
	status := 200
	if !ok2 {
		status = 502
	}
	r.recordReceipt(req, decision.Action, response, ok2, status, timeMs)
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (r *Runtime) dispatch(tool string, req ConnectorRequest) (map[string]any, error) {
	switch r.mode {
	case ModeReplay:
		if r.replayStore == nil {
			return nil, &InvocationError{Code: "service_unavailable", Message: "no replay store configured", StatusCode: 503}
		}
		resp, found := r.replayStore.Lookup(req.Service, req.Operation, req.Payload)
		if !found {
			return nil, &InvocationError{Code: "service_unavailable", Message: "no recorded response for " + tool, StatusCode: 503}
		}
		return resp, nil
	case ModeLive:
		if adapter, found := r.liveAdapters[req.Service]; found {
			return adapter.Invoke(req)
		}
		sim, found := r.simAdapters[req.Service]
		if !found {
			return nil, &InvocationError{Code: "service_unavailable", Message: "no live or sim adapter for " + string(req.Service), StatusCode: 503}
		}
		resp, err := sim.Call(tool, req.Payload)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = map[string]any{}
		}
		resp["live_backend"] = "simulated"
		return resp, nil
	default:
		adapter, found := r.simAdapters[req.Service]
		if !found {
			return nil, &InvocationError{Code: "service_unavailable", Message: "no sim adapter for " + string(req.Service), StatusCode: 503}
		}
		return adapter.Call(tool, req.Payload)
	}
}

func (r *Runtime) recordReceipt(req ConnectorRequest, action PolicyDecisionAction, response map[string]any, ok bool, statusCode int, timeMs int64) {
	receipt := ConnectorReceipt{
		RequestID:       req.RequestID,
		Mode:            r.mode,
		Service:         req.Service,
		Operation:       req.Operation,
		OperationClass:  req.OperationClass,
		PolicyAction:    action,
		OK:              ok,
		StatusCode:      statusCode,
		RequestPayload:  redactMapping(req.Payload),
		ResponsePayload: redactMapping(response),
		TimeMs:          timeMs,
	}

	r.mu.Lock()
	r.receipts = append(r.receipts, receipt)
	if len(r.receipts) > maxReceipts {
		r.receipts = r.receipts[len(r.receipts)-maxReceipts:]
	}
	r.mu.Unlock()

	r.flushReceipt(receipt)
}

func (r *Runtime) flushReceipt(receipt ConnectorReceipt) {
	if r.receiptsPath == "" {
		return
	}
	f, err := os.OpenFile(r.receiptsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	line, err := json.Marshal(receipt.ToMap())
	if err != nil {
		return
	}
	w := bufio.NewWriter(f)
	w.Write(line)
	w.WriteByte('\n')
	w.Flush()
}

// LastReceipt returns the most recently recorded receipt, if any.
func (r *Runtime) LastReceipt() (ConnectorReceipt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.receipts) == 0 {
		return ConnectorReceipt{}, false
	}
	return r.receipts[len(r.receipts)-1], true
}

// Receipts returns a copy of the current ring buffer, oldest first.
func (r *Runtime) Receipts() []ConnectorReceipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnectorReceipt, len(r.receipts))
	copy(out, r.receipts)
	return out
}

// LastReceipts implements router.ConnectorRuntime: the last n receipts
// (oldest first), rendered in the wire shape StateSnapshot embeds.
func (r *Runtime) LastReceipts(n int) []map[string]any {
	all := r.Receipts()
	if n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	out := make([]map[string]any, len(all))
	for i, rc := range all {
		out[i] = rc.ToMap()
	}
	return out
}

var _ router.ConnectorRuntime = (*Runtime)(nil)
