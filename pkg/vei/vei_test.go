package vei

import (
	"bytes"
	"testing"
)

func TestCompileAndValidateSmokeSpec(t *testing.T) {
	spec := Spec{
		Name: "smoke",
		Steps: []StepSpec{
			{StepID: "look", Tool: "browser.read", Args: map[string]any{"node_id": "home"}},
		},
	}
	compiled, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	report := Validate(compiled)
	if !report.OK {
		t.Fatalf("expected a valid minimal scenario, got %+v", report.Issues)
	}
}

func TestOpenRunAndTrace(t *testing.T) {
	spec := Spec{
		Name: "smoke",
		Steps: []StepSpec{
			{StepID: "look", Tool: "browser.read", Args: map[string]any{"node_id": "home"}},
		},
	}

	var trace bytes.Buffer
	session, err := Open(spec, 1, &trace, "test-run")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	result := session.Run()
	if !result.OK {
		t.Fatalf("expected run to succeed, got %+v", result)
	}
	if trace.Len() == 0 {
		t.Fatal("expected trace output to be non-empty")
	}
}

func TestGenerateAndFilterCorpus(t *testing.T) {
	bundle := GenerateCorpus(123, 1, 3)
	report := FilterCorpus(bundle, 0.1)
	if len(bundle.Workflows) != 3 {
		t.Fatalf("expected 3 generated workflows, got %d", len(bundle.Workflows))
	}
	if len(report.Accepted)+len(report.Rejected) != 3 {
		t.Fatalf("expected every generated workflow to be scored, got %d", len(report.Accepted)+len(report.Rejected))
	}
}
