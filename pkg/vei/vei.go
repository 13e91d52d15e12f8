package vei

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/haasonsaas/vei/internal/corpus"
	"github.com/haasonsaas/vei/internal/quality"
	"github.com/haasonsaas/vei/internal/router"
	"github.com/haasonsaas/vei/internal/scoring"
	"github.com/haasonsaas/vei/internal/tracelog"
	"github.com/haasonsaas/vei/internal/workflow"
)

// Session is an embedder's handle to a single compiled, runnable scenario.
type Session struct {
	compiled *CompiledWorkflow
	inner    *workflow.Session
}

// LoadSpec reads a workflow Spec from a JSON file (spec.md §6's Scenario
// JSON document).
func LoadSpec(path string) (Spec, error) {
	var spec Spec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read scenario: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse scenario: %w", err)
	}
	return spec, nil
}

// Compile resolves spec's world block and fixes step order, without
// constructing any twins yet.
func Compile(spec Spec) (*CompiledWorkflow, error) {
	return workflow.Compile(spec, nil)
}

// Validate statically checks a compiled workflow's step references and
// failure paths, independent of any running session.
func Validate(compiled *CompiledWorkflow) ValidationReport {
	return workflow.StaticValidate(compiled, nil)
}

// Open compiles spec and constructs a runnable Session with all twins
// wired, optionally appending a JSONL trace to traceOut (pass nil to skip
// tracing).
func Open(spec Spec, seed int64, traceOut io.Writer, runID string) (*Session, error) {
	compiled, err := workflow.Compile(spec, nil)
	if err != nil {
		return nil, err
	}

	var opts []router.Option
	if traceOut != nil {
		opts = append(opts, router.WithTrace(tracelog.NewWriter(traceOut, runID, seed)))
	}

	inner, err := workflow.BuildSession(compiled.World, seed, opts...)
	if err != nil {
		return nil, err
	}

	if report := workflow.StaticValidate(compiled, availableTools(inner.Router)); !report.OK {
		inner.Close()
		return nil, fmt.Errorf("scenario references unavailable tools: %+v", report.Issues)
	}

	return &Session{compiled: compiled, inner: inner}, nil
}

// Run executes every step of the session's compiled workflow to completion
// (or until a failure path with on_failure: fail stops it).
func (s *Session) Run() RunResult {
	return workflow.Run(s.compiled, s.inner.Router)
}

// Close releases the session's resources (the relational-DB twin's handle).
func (s *Session) Close() error {
	return s.inner.Close()
}

func availableTools(r *router.Router) map[string]bool {
	out := map[string]bool{}
	for _, spec := range r.Registry().All() {
		out[spec.Name] = true
	}
	return out
}

// GenerateCorpus produces a deterministic batch of synthetic environments
// and workflow scenarios (spec.md §4.6).
func GenerateCorpus(seed int64, environmentCount, scenariosPerEnvironment int) CorpusBundle {
	return corpus.GenerateCorpus(seed, environmentCount, scenariosPerEnvironment)
}

// FilterCorpus scores a generated bundle's workflows and partitions them
// into accepted/rejected by fingerprint novelty, realism, and runnability.
func FilterCorpus(bundle CorpusBundle, realismThreshold float64) QualityReport {
	return quality.FilterCorpus(bundle.Workflows, realismThreshold)
}

// ScoreTrace reads back a JSONL trace file and computes its subgoal/policy
// verdict (spec.md §4.7).
func ScoreTrace(path string, mode ScoreMode) (ScoreResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScoreResult{}, err
	}
	defer f.Close()

	reader, err := tracelog.NewReader(f)
	if err != nil {
		return ScoreResult{}, err
	}
	records, err := reader.ReadAll()
	if err != nil {
		return ScoreResult{}, err
	}
	return scoring.ComputeScore(records, mode), nil
}
