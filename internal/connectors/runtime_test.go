package connectors

import (
	"os"
	"testing"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/twins/slack"
)

func newSlackRuntime(t *testing.T, mode AdapterMode, gate PolicyGate) (*Runtime, *slack.Twin) {
	t.Helper()
	b := bus.New()
	tw := slack.New(b)
	rt := NewRuntime(mode, gate, map[ServiceName]Provider{ServiceSlack: tw})
	return rt, tw
}

func TestSimModeDispatchesToTwin(t *testing.T) {
	rt, _ := newSlackRuntime(t, ModeSim, NewDefaultPolicyGate())
	resp, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hello"}, "agent", 0)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["ts"].(string) != "1" {
		t.Fatalf("ts = %v, want 1", resp["ts"])
	}
}

func TestNonLiveModeAllowsEverythingRegardlessOfFlags(t *testing.T) {
	gate := NewDefaultPolicyGate() // both live-write flags false
	rt, _ := newSlackRuntime(t, ModeSim, gate)
	if _, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0); err != nil {
		t.Fatalf("expected allow in sim mode, got %v", err)
	}
}

func TestLiveModeRequiresApprovalForWriteSafeByDefault(t *testing.T) {
	gate := NewDefaultPolicyGate()
	rt, _ := newSlackRuntime(t, ModeLive, gate)
	_, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0)
	if err == nil {
		t.Fatal("expected policy.approval_required")
	}
	ie, ok := err.(*InvocationError)
	if !ok || ie.Code != "policy.approval_required" {
		t.Fatalf("err = %v, want policy.approval_required", err)
	}
}

func TestLiveModeAllowsWriteSafeWhenFlagSet(t *testing.T) {
	gate := &DefaultPolicyGate{LiveAllowWriteSafe: true, BlockedOperations: map[string]bool{}}
	rt, _ := newSlackRuntime(t, ModeLive, gate)
	if _, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestBlocklistDeniesRegardlessOfMode(t *testing.T) {
	gate := &DefaultPolicyGate{BlockedOperations: map[string]bool{"slack.post": true}}
	rt, _ := newSlackRuntime(t, ModeSim, gate)
	_, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0)
	ie, ok := err.(*InvocationError)
	if !ok || ie.Code != "policy.denied" {
		t.Fatalf("err = %v, want policy.denied", err)
	}
}

func TestReceiptsAreRedactedAndRingBuffered(t *testing.T) {
	rt, _ := newSlackRuntime(t, ModeSim, NewDefaultPolicyGate())
	if _, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "contact me at jane@example.com"}, "agent", 0); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	receipt, ok := rt.LastReceipt()
	if !ok {
		t.Fatal("expected a receipt")
	}
	text, _ := receipt.RequestPayload["text"].(string)
	if text != "contact me at [redacted-email]" {
		t.Fatalf("request payload not redacted: %q", text)
	}
}

func TestReceiptsFlushToJSONL(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "receipts-*.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()

	b := bus.New()
	tw := slack.New(b)
	rt := NewRuntime(ModeSim, NewDefaultPolicyGate(), map[ServiceName]Provider{ServiceSlack: tw}, WithReceiptsPath(path))
	if _, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipts: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a flushed receipt line")
	}
}

func TestUnmanagedToolIsNotManaged(t *testing.T) {
	rt, _ := newSlackRuntime(t, ModeSim, NewDefaultPolicyGate())
	if rt.Manages("bogus.tool") {
		t.Fatal("expected bogus.tool to be unmanaged")
	}
	if !rt.Manages("slack.post") {
		t.Fatal("expected slack.post to be managed")
	}
}

func TestReplayModeMissIsServiceUnavailable(t *testing.T) {
	rt, _ := newSlackRuntime(t, ModeReplay, NewDefaultPolicyGate())
	_, err := rt.Invoke("slack.post", map[string]any{"channel": "#eng", "user": "sam", "text": "hi"}, "agent", 0)
	ie, ok := err.(*InvocationError)
	if !ok || ie.Code != "service_unavailable" {
		t.Fatalf("err = %v, want service_unavailable", err)
	}
}
