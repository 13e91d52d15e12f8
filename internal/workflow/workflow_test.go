package workflow

import "testing"

func simpleSpec(steps []StepSpec) Spec {
	return Spec{
		Name:      "test-workflow",
		Objective: ObjectiveSpec{Statement: "post and confirm a slack message"},
		Steps:     steps,
	}
}

func TestCompileAssignsOrderAndLookup(t *testing.T) {
	spec := simpleSpec([]StepSpec{
		{StepID: "post", Tool: "slack.post", Args: map[string]any{"channel": "#general", "user": "alice", "text": "hello"}},
		{StepID: "history", Tool: "slack.history", Args: map[string]any{"channel": "#general"}},
	})

	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(compiled.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(compiled.Steps))
	}
	if compiled.Steps[0].Index != 1 || compiled.Steps[1].Index != 2 {
		t.Fatalf("expected 1-indexed steps, got %d, %d", compiled.Steps[0].Index, compiled.Steps[1].Index)
	}
	if compiled.StepLookup["history"].Tool != "slack.history" {
		t.Fatalf("step lookup missing expected entry")
	}
	if compiled.World == nil {
		t.Fatalf("expected a default World when world block is empty")
	}
}

func TestCompileRejectsDuplicateStepIDs(t *testing.T) {
	spec := simpleSpec([]StepSpec{
		{StepID: "a", Tool: "slack.post"},
		{StepID: "a", Tool: "slack.history"},
	})
	if _, err := Compile(spec, nil); err == nil {
		t.Fatalf("expected duplicate step_id error")
	}
}

func TestStaticValidateFlagsUnavailableTool(t *testing.T) {
	spec := simpleSpec([]StepSpec{{StepID: "a", Tool: "slack.nonexistent"}})
	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	report := StaticValidate(compiled, map[string]bool{"slack.post": true})
	if report.OK {
		t.Fatalf("expected validation failure for unavailable tool")
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Code == "tool.unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tool.unavailable issue, got %+v", report.Issues)
	}
}

func TestStaticValidateFlagsDanglingFailurePath(t *testing.T) {
	spec := simpleSpec([]StepSpec{{StepID: "a", Tool: "slack.post"}})
	spec.FailurePaths = []FailurePathSpec{{Name: "retry", TriggerStep: "missing", RecoverySteps: []string{"also-missing"}}}
	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	report := StaticValidate(compiled, nil)
	if report.OK {
		t.Fatalf("expected validation failure for dangling failure path")
	}
	codes := map[string]bool{}
	for _, issue := range report.Issues {
		codes[issue.Code] = true
	}
	if !codes["failure_path.trigger_missing"] || !codes["failure_path.recovery_missing"] {
		t.Fatalf("expected both trigger and recovery missing issues, got %+v", report.Issues)
	}
}

func TestStaticValidateWarnsOnUnmappedApproval(t *testing.T) {
	spec := simpleSpec([]StepSpec{{StepID: "a", Tool: "slack.post"}})
	spec.Approvals = []ApprovalSpec{{Stage: "spend", Approver: "cfo", Required: true}}
	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	report := StaticValidate(compiled, nil)
	if !report.OK {
		t.Fatalf("unmapped approval should only warn, not fail: %+v", report.Issues)
	}
	if len(report.Issues) != 1 || report.Issues[0].Code != "approval.unmapped" {
		t.Fatalf("expected a single approval.unmapped warning, got %+v", report.Issues)
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := map[string]any{"channel": "#general", "text": "hello world"}
	observation := map[string]any{"summary": "events pending", "focus": "slack"}
	pending := map[string]any{"total": 2, "slack": 2}

	cases := []struct {
		name    string
		a       AssertionSpec
		wantFail bool
	}{
		{"result_contains hit", AssertionSpec{Kind: AssertResultContains, Field: "text", Contains: "world"}, false},
		{"result_contains miss", AssertionSpec{Kind: AssertResultContains, Field: "text", Contains: "nope"}, true},
		{"result_equals hit", AssertionSpec{Kind: AssertResultEquals, Field: "channel", Equals: "#general"}, false},
		{"result_equals miss", AssertionSpec{Kind: AssertResultEquals, Field: "channel", Equals: "#random"}, true},
		{"observation_contains hit", AssertionSpec{Kind: AssertObservationContains, Focus: "summary", Contains: "pending"}, false},
		{"pending_max within bound", AssertionSpec{Kind: AssertPendingMax, Field: "total", MaxValue: intPtr(5)}, false},
		{"pending_max exceeded", AssertionSpec{Kind: AssertPendingMax, Field: "total", MaxValue: intPtr(1)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			failures := EvaluateAssertions([]AssertionSpec{tc.a}, result, observation, pending)
			if tc.wantFail && len(failures) == 0 {
				t.Fatalf("expected a failure, got none")
			}
			if !tc.wantFail && len(failures) != 0 {
				t.Fatalf("expected no failure, got %v", failures)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestBuildSessionAndRunWorkflow(t *testing.T) {
	spec := simpleSpec([]StepSpec{
		{
			StepID:      "post",
			Description: "post a greeting",
			Tool:        "slack.post",
			Args:        map[string]any{"channel": "#general", "user": "alice", "text": "hello"},
			Expect: []AssertionSpec{
				{Kind: AssertResultContains, Field: "text", Contains: "hello"},
			},
		},
		{
			StepID:      "history",
			Description: "confirm history contains the message",
			Tool:        "slack.history",
			Args:        map[string]any{"channel": "#general"},
		},
	})

	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	session, err := BuildSession(compiled.World, 42)
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	defer session.Close()

	result := Run(compiled, session.Router)
	if !result.StaticValidation.OK {
		t.Fatalf("expected static validation to pass: %+v", result.StaticValidation.Issues)
	}
	if !result.OK {
		t.Fatalf("expected workflow to succeed, dynamic issues: %+v", result.DynamicValidation.Issues)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step executions, got %d", len(result.Steps))
	}
	if !result.Steps[0].OK {
		t.Fatalf("expected first step to pass its assertions: %+v", result.Steps[0].AssertionFailures)
	}
}

func TestRunOnFailureJumpSkipsToTarget(t *testing.T) {
	spec := simpleSpec([]StepSpec{
		{
			StepID:    "bad",
			Tool:      "slack.post",
			Args:      map[string]any{"channel": "#general", "user": "alice", "text": "hello"},
			Expect:    []AssertionSpec{{Kind: AssertResultEquals, Field: "text", Equals: "nope"}},
			OnFailure: "jump:recover",
		},
		{StepID: "skipped", Tool: "slack.post", Args: map[string]any{"channel": "#general", "user": "bob", "text": "skip me"}},
		{StepID: "recover", Tool: "slack.post", Args: map[string]any{"channel": "#general", "user": "carol", "text": "recovered"}},
	})

	compiled, err := Compile(spec, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	session, err := BuildSession(compiled.World, 7)
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	defer session.Close()

	result := Run(compiled, session.Router)
	if len(result.Steps) != 2 {
		t.Fatalf("expected exactly 2 executed steps (bad + recover, skipping 'skipped'), got %d", len(result.Steps))
	}
	if result.Steps[1].StepID != "recover" {
		t.Fatalf("expected second executed step to be 'recover', got %s", result.Steps[1].StepID)
	}
}

func TestResolveWorldInlineDecodesDocuments(t *testing.T) {
	world := map[string]any{
		"documents": []any{
			map[string]any{"doc_id": "doc-1", "title": "Runbook", "body": "steps", "owner": "alice"},
		},
		"mail_target": "mail.support",
	}
	resolved, err := ResolveWorld(world, nil)
	if err != nil {
		t.Fatalf("ResolveWorld: %v", err)
	}
	if len(resolved.Documents) != 1 || resolved.Documents[0].DocID != "doc-1" {
		t.Fatalf("expected one decoded document, got %+v", resolved.Documents)
	}
	if resolved.MailTarget != "mail.support" {
		t.Fatalf("expected mail_target to round-trip, got %q", resolved.MailTarget)
	}
}

func TestResolveWorldUnknownCatalogErrors(t *testing.T) {
	world := map[string]any{"catalog": "does-not-exist"}
	catalog := func(name string) (*World, bool) { return nil, false }
	if _, err := ResolveWorld(world, catalog); err == nil {
		t.Fatalf("expected an error for an unknown catalog scenario")
	}
}
