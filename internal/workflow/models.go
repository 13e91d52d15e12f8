// Package workflow implements the Workflow Engine (spec.md §4.5): a
// declarative step sequence compiled against a resolved world, run to
// completion (or branched via on_failure) while evaluating assertions,
// adapted from the teacher's cobra-command validation idiom.
package workflow

// ObjectiveSpec states what the workflow is trying to accomplish.
type ObjectiveSpec struct {
	Statement string   `json:"statement"`
	Success   []string `json:"success,omitempty"`
}

// ActorSpec names one human or system role the workflow references.
type ActorSpec struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Email   string `json:"email,omitempty"`
	Slack   string `json:"slack,omitempty"`
}

// ConstraintSpec is a named business rule the workflow is expected to respect.
type ConstraintSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ApprovalSpec declares an approval gate the workflow's steps must satisfy.
type ApprovalSpec struct {
	Stage    string `json:"stage"`
	Approver string `json:"approver"`
	Required bool   `json:"required"`
	Evidence string `json:"evidence,omitempty"`
}

// AssertionKind enumerates the assertion DSL from spec.md §4.5.
type AssertionKind string

const (
	AssertResultContains      AssertionKind = "result_contains"
	AssertResultEquals        AssertionKind = "result_equals"
	AssertObservationContains AssertionKind = "observation_contains"
	AssertPendingMax          AssertionKind = "pending_max"
)

// AssertionSpec is one post-step or success-level check.
type AssertionSpec struct {
	Kind        AssertionKind `json:"kind"`
	Field       string        `json:"field,omitempty"`
	Contains    string        `json:"contains,omitempty"`
	Equals      string        `json:"equals,omitempty"`
	Focus       string        `json:"focus,omitempty"`
	MaxValue    *int          `json:"max_value,omitempty"`
	Description string        `json:"description,omitempty"`
}

// StepSpec is one declared workflow step.
type StepSpec struct {
	StepID      string          `json:"step_id"`
	Description string          `json:"description"`
	Tool        string          `json:"tool"`
	Args        map[string]any  `json:"args,omitempty"`
	Expect      []AssertionSpec `json:"expect,omitempty"`
	OnFailure   string          `json:"on_failure,omitempty"` // fail (default) | continue | skip | jump:<step_id>
}

// FailurePathSpec documents a named recovery path triggered by a step.
type FailurePathSpec struct {
	Name          string   `json:"name"`
	TriggerStep   string   `json:"trigger_step"`
	RecoverySteps []string `json:"recovery_steps,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// Spec is the declarative workflow document (spec.md §4.5).
type Spec struct {
	Name              string            `json:"name"`
	Objective         ObjectiveSpec     `json:"objective"`
	World             map[string]any    `json:"world,omitempty"`
	Actors            []ActorSpec       `json:"actors,omitempty"`
	Constraints       []ConstraintSpec  `json:"constraints,omitempty"`
	Approvals         []ApprovalSpec    `json:"approvals,omitempty"`
	Steps             []StepSpec        `json:"steps"`
	SuccessAssertions []AssertionSpec   `json:"success_assertions,omitempty"`
	FailurePaths      []FailurePathSpec `json:"failure_paths,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
}

// CompiledStep is a StepSpec with its fixed execution index resolved.
type CompiledStep struct {
	Index       int
	StepID      string
	Description string
	Tool        string
	Args        map[string]any
	Expect      []AssertionSpec
	OnFailure   string
}

// CompiledWorkflow is the output of Compile: steps in fixed order plus a
// step_id lookup, and the resolved World the steps will run against.
type CompiledWorkflow struct {
	Spec       Spec
	World      *World
	Steps      []CompiledStep
	StepLookup map[string]CompiledStep
}

// ValidationIssue is one static or dynamic validation finding.
type ValidationIssue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	StepID   string `json:"step_id,omitempty"`
	Severity string `json:"severity"` // error | warning
}

// ValidationReport aggregates issues; ok is false iff any issue is an error.
type ValidationReport struct {
	OK     bool              `json:"ok"`
	Issues []ValidationIssue `json:"issues"`
}

// StepExecution is one step's runtime outcome.
type StepExecution struct {
	StepID            string         `json:"step_id"`
	Tool              string         `json:"tool"`
	OK                bool           `json:"ok"`
	Result            map[string]any `json:"result,omitempty"`
	Observation       map[string]any `json:"observation,omitempty"`
	AssertionFailures []string       `json:"assertion_failures,omitempty"`
	TimeMs            int64          `json:"time_ms"`
}

// RunResult is the top-level outcome of running a CompiledWorkflow.
type RunResult struct {
	OK                bool              `json:"ok"`
	WorkflowName      string            `json:"workflow_name"`
	StaticValidation  ValidationReport  `json:"static_validation"`
	DynamicValidation ValidationReport  `json:"dynamic_validation"`
	Steps             []StepExecution   `json:"steps"`
	Metadata          map[string]any    `json:"metadata"`
}
