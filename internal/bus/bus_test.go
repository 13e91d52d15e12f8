package bus

import "testing"

type recordingReceiver struct {
	received []map[string]any
}

func (r *recordingReceiver) Deliver(payload map[string]any) (map[string]any, error) {
	r.received = append(r.received, payload)
	return nil, nil
}

func TestScheduleThenTick(t *testing.T) {
	b := New()
	recv := &recordingReceiver{}
	b.Register("mail", recv)

	b.Schedule(15000, "mail", map[string]any{"kind": "reply"})
	if got := b.Pending().Total; got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	summary := b.Tick(15000)
	if summary.Delivered["mail"] != 1 {
		t.Fatalf("delivered[mail] = %d, want 1", summary.Delivered["mail"])
	}
	if b.Pending().Total != 0 {
		t.Fatalf("pending after tick = %d, want 0", b.Pending().Total)
	}
	if len(recv.received) != 1 {
		t.Fatalf("receiver got %d deliveries, want 1", len(recv.received))
	}
}

func TestTickBeforeDueDeliversNothing(t *testing.T) {
	b := New()
	recv := &recordingReceiver{}
	b.Register("mail", recv)

	b.Schedule(15000, "mail", map[string]any{})
	summary := b.Tick(14999)
	if summary.Delivered["mail"] != 0 {
		t.Fatalf("delivered[mail] = %d, want 0", summary.Delivered["mail"])
	}
	if b.Pending().Total != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending().Total)
	}
}

func TestDeliveryOrderByTimeThenSeq(t *testing.T) {
	b := New()
	recv := &recordingReceiver{}
	b.Register("slack", recv)

	b.Schedule(10, "slack", map[string]any{"n": 1})
	b.Schedule(5, "slack", map[string]any{"n": 2})
	b.Schedule(5, "slack", map[string]any{"n": 3})

	b.Tick(10)
	if len(recv.received) != 3 {
		t.Fatalf("got %d deliveries, want 3", len(recv.received))
	}
	order := []int{}
	for _, p := range recv.received {
		order = append(order, p["n"].(int))
	}
	want := []int{2, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", order, want)
		}
	}
}

func TestScheduleDuringDeliveryWaitsForNextTick(t *testing.T) {
	b := New()
	var selfScheduled bool
	b.Register("docs", deliverFunc(func(payload map[string]any) (map[string]any, error) {
		if !selfScheduled {
			selfScheduled = true
			b.Schedule(0, "docs", map[string]any{"reentrant": true})
		}
		return nil, nil
	}))

	b.Schedule(0, "docs", map[string]any{"initial": true})
	summary := b.Tick(0)
	if summary.Delivered["docs"] != 1 {
		t.Fatalf("delivered[docs] in first tick = %d, want 1", summary.Delivered["docs"])
	}
	if b.Pending().Total != 1 {
		t.Fatalf("pending after first tick = %d, want 1 (I3)", b.Pending().Total)
	}

	summary = b.Tick(0)
	if summary.Delivered["docs"] != 1 {
		t.Fatalf("delivered[docs] in second tick = %d, want 1", summary.Delivered["docs"])
	}
}

func TestMonotonicClock(t *testing.T) {
	b := New()
	b.Tick(10)
	if b.ClockMs() != 10 {
		t.Fatalf("clock = %d, want 10", b.ClockMs())
	}
	b.Tick(0)
	if b.ClockMs() != 10 {
		t.Fatalf("clock = %d, want 10", b.ClockMs())
	}
}

type deliverFunc func(payload map[string]any) (map[string]any, error)

func (f deliverFunc) Deliver(payload map[string]any) (map[string]any, error) { return f(payload) }
