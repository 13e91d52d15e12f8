// Package tracelog implements the append-only JSONL trace and receipt log
// (spec.md §4.6), adapted from the teacher's internal/agent/trace.go:
// a versioned header line followed by one JSON object per record, flushed
// immediately for crash safety.
package tracelog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header is the first line of a trace file.
type Header struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Seed      int64     `json:"seed"`
}

// Record type discriminators (spec.md §6's trace format: "Event records:
// {type:"event", ...}. Call records: {type:"call", ...}").
const (
	RecordTypeCall  = "call"
	RecordTypeEvent = "event"
)

// CallRecord is one trace line: either a router.CallAndStep invocation
// (Type == RecordTypeCall) or a bus-delivered event / bus.unknown_target
// warning (Type == RecordTypeEvent), discriminated by Type the way
// spec.md §6 requires. Call and event fields share one struct so Reader
// doesn't need a second record type to decode either shape.
type CallRecord struct {
	Type      string         `json:"type"`
	Seq       uint64         `json:"seq"`
	TimeMs    int64          `json:"time_ms"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Response  map[string]any `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Target    string         `json:"target,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ToMap renders a record in its trace JSONL wire shape, for StateSnapshot's
// tool_tail option.
func (c CallRecord) ToMap() map[string]any {
	out := map[string]any{
		"type":    c.Type,
		"seq":     c.Seq,
		"time_ms": c.TimeMs,
	}
	if c.Tool != "" {
		out["tool"] = c.Tool
	}
	if c.Args != nil {
		out["args"] = c.Args
	}
	if c.Response != nil {
		out["response"] = c.Response
	}
	if c.Error != "" {
		out["error"] = c.Error
	}
	if c.LatencyMs != 0 {
		out["latency_ms"] = c.LatencyMs
	}
	if c.Target != "" {
		out["target"] = c.Target
	}
	if c.Payload != nil {
		out["payload"] = c.Payload
	}
	return out
}

// Redactor optionally scrubs a record in place before it is written.
type Redactor func(*CallRecord)

// maxTail bounds the in-memory ring buffer StateSnapshot's tool_tail draws
// from; the trace file itself is unbounded.
const maxTail = 64

// Writer appends CallRecords as JSONL, writing the header on first use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	file     *os.File
	header   Header
	redactor Redactor
	started  bool
	seq      uint64
	tail     []CallRecord
}

// Option configures a Writer at construction time.
type Option func(*Writer)

// WithRedactor attaches a redaction hook applied to every record before write.
func WithRedactor(r Redactor) Option {
	return func(w *Writer) { w.redactor = r }
}

// NewRunID mints a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// NewWriter constructs a Writer over an arbitrary io.Writer.
func NewWriter(w io.Writer, runID string, seed int64, opts ...Option) *Writer {
	tw := &Writer{
		w:      w,
		header: Header{Version: 1, RunID: runID, StartedAt: time.Now(), Seed: seed},
	}
	for _, opt := range opts {
		opt(tw)
	}
	return tw
}

// NewFileWriter creates (truncating) the trace file at path.
func NewFileWriter(path, runID string, seed int64, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	tw := NewWriter(f, runID, seed, opts...)
	tw.file = f
	return tw, nil
}

func (w *Writer) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := w.w.Write(data); err != nil {
		return
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return
	}
	if w.file != nil {
		w.file.Sync()
	}
}

// RecordCall implements router.TraceRecorder.
func (w *Writer) RecordCall(timeMs int64, tool string, args, response map[string]any, callErr error, latencyMs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		w.started = true
		w.writeLine(w.header)
	}

	w.seq++
	record := CallRecord{
		Type:      RecordTypeCall,
		Seq:       w.seq,
		TimeMs:    timeMs,
		Tool:      tool,
		Args:      args,
		Response:  response,
		LatencyMs: latencyMs,
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}
	if w.redactor != nil {
		w.redactor(&record)
	}
	w.appendTail(record)
	w.writeLine(record)
}

// appendTail keeps the last maxTail records for StateSnapshot's tool_tail
// option. Caller must hold w.mu.
func (w *Writer) appendTail(record CallRecord) {
	w.tail = append(w.tail, record)
	if len(w.tail) > maxTail {
		w.tail = w.tail[len(w.tail)-maxTail:]
	}
}

// Tail returns the last n recorded lines (oldest first) in their trace
// wire shape, for router.StateSnapshot's tool_tail option. n<=0 or n
// greater than the buffered amount returns everything buffered.
func (w *Writer) Tail(n int) []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	records := w.tail
	if n > 0 && n < len(records) {
		records = records[len(records)-n:]
	}
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r.ToMap()
	}
	return out
}

// RecordEvent implements bus.EventRecorder: it logs a bus-delivered event
// (or a bus.unknown_target warning, whose payload carries an "error" key)
// as a type:"event" trace line.
func (w *Writer) RecordEvent(timeMs int64, target string, payload map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		w.started = true
		w.writeLine(w.header)
	}

	w.seq++
	record := CallRecord{
		Type:    RecordTypeEvent,
		Seq:     w.seq,
		TimeMs:  timeMs,
		Target:  target,
		Payload: payload,
	}
	if w.redactor != nil {
		w.redactor(&record)
	}
	w.appendTail(record)
	w.writeLine(record)
}

// Close closes the underlying file if one was opened by NewFileWriter.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Reader reads a trace file back for replay or scoring (spec.md §4.7).
type Reader struct {
	decoder *json.Decoder
	header  Header
}

// NewReader validates and reads the header line, then returns a Reader
// positioned at the first CallRecord.
func NewReader(r io.Reader) (*Reader, error) {
	decoder := json.NewDecoder(r)
	var header Header
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("read trace header: %w", err)
	}
	if header.Version != 1 {
		return nil, fmt.Errorf("unsupported trace version: %d", header.Version)
	}
	return &Reader{decoder: decoder, header: header}, nil
}

// Header returns the trace's header.
func (r *Reader) Header() Header { return r.header }

// ReadRecord reads the next CallRecord, returning io.EOF once exhausted.
func (r *Reader) ReadRecord() (*CallRecord, error) {
	var record CallRecord
	if err := r.decoder.Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ReadAll reads every remaining record into a slice.
func (r *Reader) ReadAll() ([]CallRecord, error) {
	var out []CallRecord
	for {
		record, err := r.ReadRecord()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, *record)
	}
}
