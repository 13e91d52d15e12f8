package workflow

import "github.com/haasonsaas/vei/internal/router"

// Compile resolves spec's world block and produces a CompiledWorkflow with
// a preserved step order and a step_id lookup (spec.md §4.5's
// compile_workflow), mirroring compile_workflow_spec.
func Compile(spec Spec, catalog CatalogLookup) (*CompiledWorkflow, error) {
	if err := validateUniqueStepIDs(spec.Steps); err != nil {
		return nil, err
	}

	world, err := ResolveWorld(spec.World, catalog)
	if err != nil {
		return nil, err
	}
	world.Metadata = mergeWorkflowMetadata(world.Metadata, spec)

	steps := make([]CompiledStep, 0, len(spec.Steps))
	lookup := make(map[string]CompiledStep, len(spec.Steps))
	for i, s := range spec.Steps {
		onFailure := s.OnFailure
		if onFailure == "" {
			onFailure = "fail"
		}
		cs := CompiledStep{
			Index:       i + 1,
			StepID:      s.StepID,
			Description: s.Description,
			Tool:        s.Tool,
			Args:        s.Args,
			Expect:      s.Expect,
			OnFailure:   onFailure,
		}
		steps = append(steps, cs)
		lookup[cs.StepID] = cs
	}

	return &CompiledWorkflow{Spec: spec, World: world, Steps: steps, StepLookup: lookup}, nil
}

func validateUniqueStepIDs(steps []StepSpec) error {
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if seen[s.StepID] {
			return router.Errorf("invalid_args", "duplicate step_id: %s", s.StepID)
		}
		seen[s.StepID] = true
	}
	return nil
}

func mergeWorkflowMetadata(base map[string]any, spec Spec) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	out["workflow_name"] = spec.Name
	out["workflow_objective"] = spec.Objective.Statement
	out["workflow_success"] = spec.Objective.Success
	out["workflow_tags"] = spec.Tags
	return out
}
