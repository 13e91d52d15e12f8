// Package router implements the Tool Registry & Router (spec.md §4.2): the
// name->ToolSpec map, the call/observe/tick operational surface, and the
// deterministic action-menu composition.
package router

import (
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/vei/internal/bus"
)

// ConnectorRuntime is implemented by internal/connectors.Runtime. Tools
// whose route is managed by the connector runtime are dispatched through it
// instead of directly through the registry handler, so the policy gate and
// receipt trail run first (spec.md §4.4).
type ConnectorRuntime interface {
	Manages(tool string) bool
	Invoke(tool string, args map[string]any, actor string, timeMs int64) (map[string]any, error)
	// LastReceipts returns the last n recorded receipts (oldest first),
	// already in the wire shape spec.md §6 defines for receipt lines; n<=0
	// means "all available". Used by StateSnapshot's include_receipts option.
	LastReceipts(n int) []map[string]any
}

// TraceRecorder receives append-only trace records (spec.md §6).
type TraceRecorder interface {
	RecordCall(timeMs int64, tool string, args, response map[string]any, callErr error, latencyMs int64)
	// Tail returns the last n recorded trace lines (oldest first), already
	// in trace wire shape; n<=0 returns everything buffered. Used by
	// StateSnapshot's tool_tail option.
	Tail(n int) []map[string]any
}

// MetricsObserver receives passive per-call metrics (spec.md §3's ambient
// observability stack, internal/obs.Metrics.ObserveCall).
type MetricsObserver interface {
	ObserveCall(tool string, ok bool, latencyMs int64)
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.log = l }
}

// WithConnectorRuntime attaches the connector runtime used for managed tools.
func WithConnectorRuntime(cr ConnectorRuntime) Option {
	return func(r *Router) { r.connectors = cr }
}

// WithTrace attaches a trace recorder.
func WithTrace(t TraceRecorder) Option {
	return func(r *Router) { r.trace = t }
}

// WithMetrics attaches a metrics observer.
func WithMetrics(m MetricsObserver) Option {
	return func(r *Router) { r.metrics = m }
}

// WithFocusTable overrides the default tool-prefix -> focus table used by
// act_and_observe and action-menu grouping.
func WithFocusTable(table map[string]string) Option {
	return func(r *Router) { r.focusTable = table }
}

// defaultFocusTable maps a tool's "."-delimited prefix to its focus group.
func defaultFocusTable() map[string]string {
	return map[string]string{
		"browser":     "browser",
		"mail":        "mail",
		"slack":       "slack",
		"docs":        "docs",
		"calendar":    "calendar",
		"tickets":     "tickets",
		"crm":         "crm",
		"erp":         "erp",
		"okta":        "identity",
		"servicedesk": "servicedesk",
		"db":          "db",
	}
}

// Router is the uniform tool-call RPC surface described in spec.md §4.2.
// Not safe for concurrent calls on the same session (spec.md §5): a session
// is a single-threaded cooperative actor.
type Router struct {
	log        *slog.Logger
	bus        *bus.Bus
	registry   *Registry
	rng        *rand.Rand
	connectors ConnectorRuntime
	trace      TraceRecorder
	metrics    MetricsObserver
	focusTable map[string]string
	lastFocus  string
}

// New constructs a Router with the given seed (spec.md §4.2's deterministic
// RNG) over an already-populated Bus and Registry.
func New(seed int64, b *bus.Bus, reg *Registry, opts ...Option) *Router {
	r := &Router{
		log:        slog.Default(),
		bus:        b,
		registry:   reg,
		rng:        rand.New(rand.NewSource(seed)),
		focusTable: defaultFocusTable(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bus exposes the underlying event bus, e.g. for test setup.
func (r *Router) Bus() *bus.Bus { return r.bus }

// TraceRecorder exposes the attached trace recorder, if any, so a caller
// can also wire it into the bus as an event recorder (spec.md §6's
// type:"event" records for bus-delivered events and bus.unknown_target).
func (r *Router) TraceRecorder() TraceRecorder { return r.trace }

// Registry exposes the underlying tool registry.
func (r *Router) Registry() *Registry { return r.registry }

// RNG returns the router's single seeded random source. Twins must draw
// randomness only through this handle (spec.md §4.2) to preserve
// determinism.
func (r *Router) RNG() *rand.Rand { return r.rng }

// focusForTool derives the focus group for a tool name from its "."-prefix.
func (r *Router) focusForTool(tool string) string {
	prefix, _, found := strings.Cut(tool, ".")
	if !found {
		return ""
	}
	if focus, ok := r.focusTable[prefix]; ok {
		return focus
	}
	return prefix
}

// Observation is the payload returned by Observe/ActAndObserve.
type Observation struct {
	TimeMs      int64          `json:"time_ms"`
	Focus       string         `json:"focus"`
	Summary     string         `json:"summary"`
	ActionMenu  []string       `json:"action_menu"`
	Pending     map[string]any `json:"pending_events"`
}

// Observe returns the current time, focus, a composed action menu, and
// pending-event counts (spec.md §4.2).
func (r *Router) Observe(focusHint string) Observation {
	focus := focusHint
	if focus == "" {
		focus = r.lastFocus
	}
	r.lastFocus = focus

	specs := r.registry.All()
	var preferred, rest []string
	for _, spec := range specs {
		name := spec.Name
		if focus != "" && strings.HasPrefix(name, focus+".") {
			preferred = append(preferred, name)
		} else {
			rest = append(rest, name)
		}
	}
	sort.Strings(preferred)
	sort.Strings(rest)
	menu := append(preferred, rest...)

	pending := r.bus.Pending()
	pendingOut := map[string]any{"total": pending.Total}
	for target, count := range pending.ByTarget {
		pendingOut[target] = count
	}

	summary := "idle"
	if pending.Total > 0 {
		summary = "events pending"
	}

	return Observation{
		TimeMs:     r.bus.ClockMs(),
		Focus:      focus,
		Summary:    summary,
		ActionMenu: menu,
		Pending:    pendingOut,
	}
}

// latencyForSpec draws a bounded deterministic latency from
// (default_latency_ms ± latency_jitter_ms) using the router's seeded RNG.
func (r *Router) latencyForSpec(spec ToolSpec) int64 {
	if spec.LatencyJitterMs <= 0 {
		return int64(spec.DefaultLatencyMs)
	}
	jitter := r.rng.Intn(2*spec.LatencyJitterMs+1) - spec.LatencyJitterMs
	latency := spec.DefaultLatencyMs + jitter
	if latency < 0 {
		latency = 0
	}
	return int64(latency)
}

// CallAndStep looks up tool, dispatches it (through the connector runtime
// if managed, else directly), advances the clock by a bounded deterministic
// latency, and appends the call to the trace (spec.md §4.2).
func (r *Router) CallAndStep(tool string, args map[string]any) (map[string]any, error) {
	startMs := r.bus.ClockMs()
	spec, handler, ok := r.registry.Get(tool)
	if !ok {
		err := Errorf("unknown_tool", "no such tool: %s", tool)
		if r.trace != nil {
			r.trace.RecordCall(startMs, tool, args, nil, err, 0)
		}
		return nil, err
	}

	if err := checkArgsSize(tool, args); err != nil {
		if r.trace != nil {
			r.trace.RecordCall(startMs, tool, args, nil, err, 0)
		}
		return nil, err
	}

	if err := validateArgs(spec, args); err != nil {
		if r.trace != nil {
			r.trace.RecordCall(startMs, tool, args, nil, err, 0)
		}
		return nil, err
	}

	var response map[string]any
	var err error
	if r.connectors != nil && r.connectors.Manages(tool) {
		response, err = r.connectors.Invoke(tool, args, "agent", startMs)
	} else {
		if spec.FaultProbability > 0 && r.rng.Float64() < spec.FaultProbability {
			err = Errorf("validation_error", "injected fault for %s", tool)
		} else {
			response, err = handler(args)
		}
	}

	latency := r.latencyForSpec(spec)
	r.bus.Tick(latency)

	if r.trace != nil {
		r.trace.RecordCall(startMs, tool, args, response, err, latency)
	}
	if r.metrics != nil {
		r.metrics.ObserveCall(tool, err == nil, latency)
	}
	return response, err
}

// ActAndObserve is CallAndStep followed by Observe, focused on the tool's
// derived focus group (spec.md §4.2).
func (r *Router) ActAndObserve(tool string, args map[string]any) (map[string]any, Observation, error) {
	response, err := r.CallAndStep(tool, args)
	obs := r.Observe(r.focusForTool(tool))
	return response, obs, err
}

// Tick proxies to the bus.
func (r *Router) Tick(dtMs int64) bus.DrainSummary {
	return r.bus.Tick(dtMs)
}

// Pending proxies to the bus.
func (r *Router) Pending() bus.PendingSummary {
	return r.bus.Pending()
}

// SearchTools proxies to the registry.
func (r *Router) SearchTools(query string, topK int) []ToolSpec {
	return r.registry.Search(query, topK)
}

// RegisterToolProvider proxies to the registry.
func (r *Router) RegisterToolProvider(p ToolProvider) error {
	return r.registry.RegisterProvider(p)
}

// StateSnapshotOptions controls what StateSnapshot includes.
type StateSnapshotOptions struct {
	IncludeState    bool
	ToolTail        int
	IncludeReceipts bool
}

// StateSnapshot returns router diagnostics: the current time, pending
// summary, and (per opts) the trace tail, last connector receipts, and a
// hashed digest of every twin's state (spec.md §4.2).
func (r *Router) StateSnapshot(opts StateSnapshotOptions) map[string]any {
	out := map[string]any{
		"time_ms": r.bus.ClockMs(),
		"pending": r.bus.Pending().Total,
	}
	if opts.ToolTail > 0 && r.trace != nil {
		out["tool_tail"] = r.trace.Tail(opts.ToolTail)
	}
	if opts.IncludeReceipts && r.connectors != nil {
		out["receipts"] = r.connectors.LastReceipts(0)
	}
	if opts.IncludeState {
		out["state_digest"] = r.registry.StateDigest()
	}
	return out
}

// HelpPayload enumerates every registered tool plus the reserved router
// method names, for introspection by a driving agent.
func (r *Router) HelpPayload() map[string]any {
	specs := r.registry.All()
	tools := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, map[string]any{
			"name":        s.Name,
			"description": s.Description,
		})
	}
	reserved := make([]string, 0, len(ReservedNames))
	for name := range ReservedNames {
		reserved = append(reserved, name)
	}
	sort.Strings(reserved)
	return map[string]any{
		"tools":    tools,
		"reserved": reserved,
	}
}

// Reset is a placeholder timestamp hook for callers that want to tag a
// reset event; actual session reconstruction (a fresh Bus/Registry/Router)
// happens at the CLI layer, not inside Router itself.
func (r *Router) Reset() time.Time {
	return time.UnixMilli(0)
}
