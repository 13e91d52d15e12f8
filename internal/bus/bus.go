// Package bus implements the router's single logical clock and deterministic
// event scheduler: a min-heap ordered by (time_ms, seq) that drains into
// per-target Receiver.Deliver hooks on tick.
package bus

import (
	"container/heap"
	"log/slog"
	"sort"
)

// Receiver is implemented by anything that can accept a delivered event
// payload from the bus (a service twin, in practice).
type Receiver interface {
	Deliver(payload map[string]any) (map[string]any, error)
}

// EventRecorder receives append-only trace records for bus-delivered events
// (spec.md §6's `{type:"event", time_ms, target, payload}` record), kept
// separate from router.TraceRecorder's call records so this package never
// imports internal/router.
type EventRecorder interface {
	RecordEvent(timeMs int64, target string, payload map[string]any)
}

type event struct {
	timeMs int64
	seq    uint64
	target string
	payload map[string]any
	index  int // heap index, maintained by container/heap
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].timeMs != h[j].timeMs {
		return h[i].timeMs < h[j].timeMs
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// DrainSummary is returned by Tick: counts of events delivered and still
// pending, grouped by target.
type DrainSummary struct {
	Delivered map[string]int
	Pending   PendingSummary
}

// PendingSummary groups pending-event counts by target, plus a grand total.
type PendingSummary struct {
	ByTarget map[string]int
	Total    int
}

// Bus is the deterministic event scheduler. It is not safe for concurrent
// use: a session's tool calls are strictly serialized (spec §5).
type Bus struct {
	log       *slog.Logger
	clockMs   int64
	seq       uint64
	heap      eventHeap
	receivers map[string]Receiver
	trace     EventRecorder
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithEventRecorder attaches the trace event recorder.
func WithEventRecorder(e EventRecorder) Option {
	return func(b *Bus) { b.trace = e }
}

// SetEventRecorder attaches the trace event recorder after construction,
// for callers (workflow.BuildSession) that build the Router — and its
// trace recorder — after the Bus already exists.
func (b *Bus) SetEventRecorder(e EventRecorder) { b.trace = e }

// New constructs an empty Bus with clock_ms starting at 0.
func New(opts ...Option) *Bus {
	b := &Bus{
		log:       slog.Default(),
		receivers: make(map[string]Receiver),
	}
	heap.Init(&b.heap)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ClockMs returns the current logical clock value.
func (b *Bus) ClockMs() int64 { return b.clockMs }

// Register binds a named target to a Receiver that will process delivered
// events for that target.
func (b *Bus) Register(target string, r Receiver) {
	b.receivers[target] = r
}

// Schedule inserts an event at clock_ms+dtMs with the next monotonic seq.
// dtMs must be >= 0. Scheduling to an unknown target does not fail here;
// the failure (if any) surfaces at delivery time in Tick, per I3/§4.1.
func (b *Bus) Schedule(dtMs int64, target string, payload map[string]any) {
	if dtMs < 0 {
		dtMs = 0
	}
	b.seq++
	heap.Push(&b.heap, &event{
		timeMs:  b.clockMs + dtMs,
		seq:     b.seq,
		target:  target,
		payload: payload,
	})
}

// Tick atomically advances clock_ms by dtMs, then pops and dispatches every
// event whose time_ms <= the new clock_ms, in (time_ms, seq) order.
func (b *Bus) Tick(dtMs int64) DrainSummary {
	if dtMs < 0 {
		dtMs = 0
	}
	b.clockMs += dtMs
	deadline := b.clockMs
	cutoffSeq := b.seq // events scheduled during this drain (I3) wait for the next tick

	var due []*event
	var deferred []*event
	for b.heap.Len() > 0 && b.heap[0].timeMs <= deadline {
		e := heap.Pop(&b.heap).(*event)
		if e.seq <= cutoffSeq {
			due = append(due, e)
		} else {
			deferred = append(deferred, e)
		}
	}
	for _, e := range deferred {
		heap.Push(&b.heap, e)
	}

	delivered := make(map[string]int)
	for _, e := range due {
		r, ok := b.receivers[e.target]
		if !ok {
			b.log.Warn("bus.unknown_target", "target", e.target)
			if b.trace != nil {
				b.trace.RecordEvent(e.timeMs, e.target, map[string]any{"error": "bus.unknown_target", "payload": e.payload})
			}
			continue
		}
		if _, err := r.Deliver(e.payload); err != nil {
			b.log.Warn("bus.deliver_error", "target", e.target, "error", err)
		}
		if b.trace != nil {
			b.trace.RecordEvent(e.timeMs, e.target, e.payload)
		}
		delivered[e.target]++
	}
	return DrainSummary{Delivered: delivered, Pending: b.pendingLocked()}
}

// Pending counts queued events grouped by target without advancing the clock.
func (b *Bus) Pending() PendingSummary { return b.pendingLocked() }

func (b *Bus) pendingLocked() PendingSummary {
	byTarget := make(map[string]int)
	total := 0
	for _, e := range b.heap {
		byTarget[e.target]++
		total++
	}
	return PendingSummary{ByTarget: byTarget, Total: total}
}

// Targets returns the registered target names, sorted, for diagnostics.
func (b *Bus) Targets() []string {
	names := make([]string, 0, len(b.receivers))
	for name := range b.receivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
