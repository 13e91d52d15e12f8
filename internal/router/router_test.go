package router

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/tracelog"
)

// stubProvider is a minimal router.ToolProvider for exercising the
// dispatcher without pulling in a real twin.
type stubProvider struct {
	prefix string
	state  map[string]any
	calls  []map[string]any
}

func (p *stubProvider) Specs() []ToolSpec {
	return []ToolSpec{
		{Name: p.prefix + "echo", Description: "echoes args back", DefaultLatencyMs: 10},
		{Name: p.prefix + "create", Description: "records a create call", SideEffects: []string{"mutation"}, InputSchema: RequiredSchema("name")},
	}
}

func (p *stubProvider) Prefixes() []string { return []string{p.prefix} }

func (p *stubProvider) Call(name string, args map[string]any) (map[string]any, error) {
	p.calls = append(p.calls, args)
	return map[string]any{"echo": args}, nil
}

func (p *stubProvider) State() map[string]any { return p.state }

func newTestRouter(t *testing.T) (*Router, *tracelog.Writer, *stubProvider) {
	t.Helper()
	b := bus.New()
	reg := NewRegistry()
	stub := &stubProvider{prefix: "stub.", state: map[string]any{"calls": 0}}
	if err := reg.RegisterProvider(stub); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	var buf bytes.Buffer
	trace := tracelog.NewWriter(&buf, "test-run", 1)
	r := New(1, b, reg, WithTrace(trace))
	return r, trace, stub
}

func TestCallAndStepRoundTripsJSONArgs(t *testing.T) {
	r, _, stub := newTestRouter(t)

	// Round-trip args through encoding/json the way a real scenario file
	// does, instead of handing the router native Go literals: JSON numbers
	// decode to float64 and arrays decode to []interface{}.
	raw := []byte(`{"name": "Acme", "count": 3, "tags": ["a", "b"]}`)
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}

	resp, err := r.CallAndStep("stub.create", args)
	if err != nil {
		t.Fatalf("CallAndStep: %v", err)
	}
	echoed, ok := resp["echo"].(map[string]any)
	if !ok {
		t.Fatalf("expected echo map in response, got %#v", resp)
	}
	if echoed["name"] != "Acme" {
		t.Fatalf("expected name to survive the JSON round trip, got %#v", echoed["name"])
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected provider to be called once, got %d", len(stub.calls))
	}
}

func TestCallAndStepUnknownTool(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if _, err := r.CallAndStep("stub.nope", nil); err == nil {
		t.Fatal("expected unknown_tool error")
	}
}

func TestCallAndStepMissingRequiredArgRejected(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if _, err := r.CallAndStep("stub.create", map[string]any{}); err == nil {
		t.Fatal("expected invalid_args error for missing required field")
	}
}

func TestCallAndStepAdvancesClock(t *testing.T) {
	r, _, _ := newTestRouter(t)
	before := r.Bus().ClockMs()
	if _, err := r.CallAndStep("stub.echo", map[string]any{}); err != nil {
		t.Fatalf("CallAndStep: %v", err)
	}
	after := r.Bus().ClockMs()
	if after <= before {
		t.Fatalf("expected clock to advance past %d, got %d", before, after)
	}
}

func TestActAndObserveFocusesOnCalledToolPrefix(t *testing.T) {
	r, _, _ := newTestRouter(t)
	_, obs, err := r.ActAndObserve("stub.echo", map[string]any{})
	if err != nil {
		t.Fatalf("ActAndObserve: %v", err)
	}
	if obs.Focus != "stub" {
		t.Fatalf("expected focus stub, got %q", obs.Focus)
	}
	found := false
	for _, name := range obs.ActionMenu {
		if name == "stub.echo" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stub.echo in action menu, got %v", obs.ActionMenu)
	}
}

func TestTickAndPending(t *testing.T) {
	r, _, _ := newTestRouter(t)
	r.Bus().Schedule(100, "stub.target", map[string]any{"x": 1})
	if r.Pending().Total != 1 {
		t.Fatalf("expected one pending event, got %d", r.Pending().Total)
	}
	summary := r.Tick(200)
	if summary.Pending.Total != 0 {
		t.Fatalf("expected the event to have drained, got %+v", summary.Pending)
	}
}

func TestSearchToolsRanksPrefixMatchFirst(t *testing.T) {
	r, _, _ := newTestRouter(t)
	results := r.SearchTools("stub", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(results))
	}
}

func TestStateSnapshotDefaultsToTimeAndPending(t *testing.T) {
	r, _, _ := newTestRouter(t)
	snap := r.StateSnapshot(StateSnapshotOptions{})
	if _, ok := snap["time_ms"]; !ok {
		t.Fatal("expected time_ms in snapshot")
	}
	if _, ok := snap["pending"]; !ok {
		t.Fatal("expected pending in snapshot")
	}
	if _, ok := snap["tool_tail"]; ok {
		t.Fatal("did not expect tool_tail when ToolTail is zero")
	}
	if _, ok := snap["state_digest"]; ok {
		t.Fatal("did not expect state_digest when IncludeState is false")
	}
}

func TestStateSnapshotToolTailReturnsTrace(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if _, err := r.CallAndStep("stub.echo", map[string]any{}); err != nil {
		t.Fatalf("CallAndStep: %v", err)
	}
	snap := r.StateSnapshot(StateSnapshotOptions{ToolTail: 10})
	tail, ok := snap["tool_tail"].([]map[string]any)
	if !ok || len(tail) != 1 {
		t.Fatalf("expected one tail record, got %#v", snap["tool_tail"])
	}
	if tail[0]["type"] != tracelog.RecordTypeCall {
		t.Fatalf("expected a call record, got %#v", tail[0])
	}
}

func TestStateSnapshotIncludeStateDigestIsStable(t *testing.T) {
	r, _, _ := newTestRouter(t)
	first := r.StateSnapshot(StateSnapshotOptions{IncludeState: true})["state_digest"]
	second := r.StateSnapshot(StateSnapshotOptions{IncludeState: true})["state_digest"]
	if first == "" || first != second {
		t.Fatalf("expected a stable non-empty digest, got %q and %q", first, second)
	}
}
