package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// StaticValidate checks a compiled workflow's internal references before
// any step runs (spec.md §4.5): unknown tools, dangling failure-path
// references, and approvals with no approval-shaped step (warning only).
func StaticValidate(w *CompiledWorkflow, availableTools map[string]bool) ValidationReport {
	var issues []ValidationIssue

	if len(availableTools) > 0 {
		for _, step := range w.Steps {
			if !availableTools[step.Tool] {
				issues = append(issues, ValidationIssue{
					Code:     "tool.unavailable",
					Message:  fmt.Sprintf("step %s uses unavailable tool: %s", step.StepID, step.Tool),
					StepID:   step.StepID,
					Severity: "error",
				})
			}
		}
	}

	for _, path := range w.Spec.FailurePaths {
		if _, ok := w.StepLookup[path.TriggerStep]; !ok {
			issues = append(issues, ValidationIssue{
				Code:     "failure_path.trigger_missing",
				Message:  fmt.Sprintf("failure path %q references unknown trigger step %s", path.Name, path.TriggerStep),
				StepID:   path.TriggerStep,
				Severity: "error",
			})
		}
		for _, recovery := range path.RecoverySteps {
			if _, ok := w.StepLookup[recovery]; !ok {
				issues = append(issues, ValidationIssue{
					Code:     "failure_path.recovery_missing",
					Message:  fmt.Sprintf("failure path %q references unknown recovery step %s", path.Name, recovery),
					StepID:   recovery,
					Severity: "error",
				})
			}
		}
	}

	if len(w.Spec.Approvals) > 0 {
		found := false
		for _, step := range w.Steps {
			if strings.Contains(strings.ToLower(step.Description), "approve") || strings.Contains(step.Tool, "approve") {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, ValidationIssue{
				Code:     "approval.unmapped",
				Message:  "workflow declares approvals but no approval-like step exists",
				Severity: "warning",
			})
		}
	}

	return ValidationReport{OK: !hasError(issues), Issues: issues}
}

func hasError(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

// EvaluateAssertions runs every assertion in expect against one step's
// result/observation/pending, returning a human-readable failure per miss.
func EvaluateAssertions(expect []AssertionSpec, result, observation, pending map[string]any) []string {
	var failures []string
	for _, a := range expect {
		if msg := assertionFailure(a, result, observation, pending); msg != "" {
			failures = append(failures, msg)
		}
	}
	return failures
}

func assertionFailure(a AssertionSpec, result, observation, pending map[string]any) string {
	switch a.Kind {
	case AssertResultContains:
		value := resolveField(result, a.Field)
		if !strings.Contains(fmt.Sprint(value), a.Contains) {
			return fmt.Sprintf("expected result field %q to contain %q", a.Field, a.Contains)
		}
		return ""
	case AssertResultEquals:
		value := resolveField(result, a.Field)
		if fmt.Sprint(value) != a.Equals {
			return fmt.Sprintf("expected result field %q == %q, got %q", a.Field, a.Equals, fmt.Sprint(value))
		}
		return ""
	case AssertObservationContains:
		focus := a.Focus
		if focus == "" {
			focus = "summary"
		}
		value := resolveField(observation, focus)
		if !strings.Contains(fmt.Sprint(value), a.Contains) {
			return fmt.Sprintf("expected observation %q to contain %q", focus, a.Contains)
		}
		return ""
	case AssertPendingMax:
		field := a.Field
		if field == "" {
			field = "total"
		}
		maxValue := 0
		if a.MaxValue != nil {
			maxValue = *a.MaxValue
		}
		value := resolveField(pending, field)
		numeric, err := toInt(value)
		if err != nil {
			return fmt.Sprintf("pending field %q is not numeric: %v", field, value)
		}
		if numeric > maxValue {
			return fmt.Sprintf("expected pending %q <= %d, got %d", field, maxValue, numeric)
		}
		return ""
	default:
		return fmt.Sprintf("unknown assertion kind: %s", a.Kind)
	}
}

// resolveField walks a dotted field path ("a.b.c") through nested maps.
func resolveField(payload map[string]any, field string) any {
	if field == "" {
		return payload
	}
	var current any = payload
	for _, key := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not numeric: %v", v)
	}
}
