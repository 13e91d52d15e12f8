package workflow

import (
	"strings"

	"github.com/haasonsaas/vei/internal/router"
)

// focusPrefixes lists every known service prefix, in the order the teacher's
// runner.py's _focus_for_tool checks them; "browser" is the fallback focus.
var focusPrefixes = []string{
	"slack", "mail", "docs", "calendar", "tickets", "erp", "crm", "db", "browser", "okta", "servicedesk",
}

func focusForTool(tool string) string {
	for _, prefix := range focusPrefixes {
		if strings.HasPrefix(tool, prefix+".") {
			return prefix
		}
	}
	return "browser"
}

func observationToMap(obs router.Observation) map[string]any {
	return map[string]any{
		"time_ms":        obs.TimeMs,
		"focus":          obs.Focus,
		"summary":        obs.Summary,
		"action_menu":    obs.ActionMenu,
		"pending_events": obs.Pending,
	}
}

// Run executes a CompiledWorkflow against r to completion (spec.md §4.5's
// run_compiled_workflow): static validation first, then a guarded step loop
// with per-step assertion evaluation and on_failure branching, then
// top-level success assertions against the final observation.
func Run(w *CompiledWorkflow, r *router.Router) RunResult {
	available := map[string]bool{}
	for _, spec := range r.Registry().All() {
		available[spec.Name] = true
	}

	staticReport := StaticValidate(w, available)
	if !staticReport.OK {
		return RunResult{
			OK:                false,
			WorkflowName:      w.Spec.Name,
			StaticValidation:  staticReport,
			DynamicValidation: ValidationReport{OK: false},
			Metadata:          map[string]any{"reason": "static validation failed"},
		}
	}

	var stepResults []StepExecution
	var dynamicIssues []ValidationIssue

	maxGuard := len(w.Steps) * 3
	if maxGuard < 1 {
		maxGuard = 1
	}

	index := 0
	guard := 0
	for index < len(w.Steps) {
		guard++
		if guard > maxGuard {
			dynamicIssues = append(dynamicIssues, ValidationIssue{
				Code:     "runner.loop_guard",
				Message:  "workflow execution exceeded loop guard budget",
				Severity: "error",
			})
			break
		}

		step := w.Steps[index]
		result, callErr := r.CallAndStep(step.Tool, step.Args)
		obs := r.Observe(focusForTool(step.Tool))
		pending := observationToMap(obs)["pending_events"].(map[string]any)

		if callErr != nil {
			stepResults = append(stepResults, StepExecution{
				StepID:            step.StepID,
				Tool:              step.Tool,
				OK:                false,
				Result:            map[string]any{"error": callErr.Error()},
				AssertionFailures: []string{callErr.Error()},
				TimeMs:            obs.TimeMs,
			})
			dynamicIssues = append(dynamicIssues, ValidationIssue{
				Code:     "step.exception",
				Message:  callErr.Error(),
				StepID:   step.StepID,
				Severity: "error",
			})
			next, ok := resolveFailureTarget(w, step.OnFailure, index)
			if !ok {
				break
			}
			index = next
			continue
		}

		failures := EvaluateAssertions(step.Expect, result, observationToMap(obs), pending)
		stepResults = append(stepResults, StepExecution{
			StepID:            step.StepID,
			Tool:              step.Tool,
			OK:                len(failures) == 0,
			Result:            result,
			Observation:       observationToMap(obs),
			AssertionFailures: failures,
			TimeMs:            obs.TimeMs,
		})

		if len(failures) > 0 {
			dynamicIssues = append(dynamicIssues, ValidationIssue{
				Code:     "assertion.failed",
				Message:  strings.Join(failures, "; "),
				StepID:   step.StepID,
				Severity: "error",
			})
			next, ok := resolveFailureTarget(w, step.OnFailure, index)
			if !ok {
				break
			}
			index = next
			continue
		}

		index++
	}

	finalObs := r.Observe("browser")
	finalPending := observationToMap(finalObs)["pending_events"].(map[string]any)
	if len(w.Spec.SuccessAssertions) > 0 {
		var lastResult map[string]any
		if len(stepResults) > 0 {
			lastResult = stepResults[len(stepResults)-1].Result
		}
		for _, failure := range EvaluateAssertions(w.Spec.SuccessAssertions, lastResult, observationToMap(finalObs), finalPending) {
			dynamicIssues = append(dynamicIssues, ValidationIssue{
				Code:     "success_assertion.failed",
				Message:  failure,
				Severity: "error",
			})
		}
	}

	dynamicReport := ValidationReport{OK: !hasError(dynamicIssues), Issues: dynamicIssues}
	return RunResult{
		OK:                staticReport.OK && dynamicReport.OK,
		WorkflowName:      w.Spec.Name,
		StaticValidation:  staticReport,
		DynamicValidation: dynamicReport,
		Steps:             stepResults,
		Metadata: map[string]any{
			"time_ms": r.Bus().ClockMs(),
		},
	}
}

// resolveFailureTarget maps a step's on_failure directive to the next step
// index, or ok=false to end the run (mirrors _resolve_failure_target).
func resolveFailureTarget(w *CompiledWorkflow, onFailure string, currentIndex int) (int, bool) {
	behavior := strings.ToLower(strings.TrimSpace(onFailure))
	switch {
	case behavior == "continue" || behavior == "skip":
		return currentIndex + 1, true
	case strings.HasPrefix(behavior, "jump:"):
		stepID := strings.TrimPrefix(behavior, "jump:")
		target, ok := w.StepLookup[stepID]
		if !ok {
			return 0, false
		}
		idx := target.Index - 1
		if idx < 0 {
			idx = 0
		}
		return idx, true
	default:
		return 0, false
	}
}
