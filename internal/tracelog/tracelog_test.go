package tracelog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/vei/internal/router"
)

var _ router.TraceRecorder = (*Writer)(nil)

func TestWriteThenReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "run-1", 42)
	w.RecordCall(0, "slack.post", map[string]any{"channel": "#eng"}, map[string]any{"ts": "1"}, nil, 140)
	w.RecordCall(140, "erp.post_payment", map[string]any{"invoice_id": "INV-1"}, nil, errors.New("payment_rejected"), 60)

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if r.Header().RunID != "run-1" || r.Header().Seed != 42 {
		t.Fatalf("header = %+v", r.Header())
	}
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Seq != 1 || records[1].Seq != 2 {
		t.Fatalf("sequence not monotonic: %+v", records)
	}
	if records[1].Error != "payment_rejected" {
		t.Fatalf("error = %q, want payment_rejected", records[1].Error)
	}
}

func TestRedactorAppliesBeforeWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "run-2", 0, WithRedactor(func(r *CallRecord) {
		r.Args = map[string]any{"redacted": true}
	}))
	w.RecordCall(0, "mail.compose", map[string]any{"body": "secret"}, nil, nil, 0)

	if strings.Contains(buf.String(), "secret") {
		t.Fatal("redactor did not strip sensitive args")
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"version":2,"run_id":"x"}` + "\n")
	if _, err := NewReader(&buf); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
