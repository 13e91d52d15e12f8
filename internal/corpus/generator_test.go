package corpus

import (
	"encoding/json"
	"testing"
)

func TestGenerateCorpusIsDeterministic(t *testing.T) {
	a := GenerateCorpus(42042, 3, 4)
	b := GenerateCorpus(42042, 3, 4)

	rawA, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	rawB, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if string(rawA) != string(rawB) {
		t.Fatalf("expected byte-identical output for identical (seed, env_count, scenarios_per_env)")
	}
}

func TestGenerateCorpusDifferentSeedsDiverge(t *testing.T) {
	a := GenerateCorpus(1, 2, 2)
	b := GenerateCorpus(2, 2, 2)
	if a.Environments[0].Profile.OrgName == b.Environments[0].Profile.OrgName &&
		a.Environments[0].Profile.BudgetCapUSD == b.Environments[0].Profile.BudgetCapUSD {
		t.Fatalf("expected different seeds to plausibly diverge in generated content")
	}
}

func TestGenerateCorpusShapeCounts(t *testing.T) {
	bundle := GenerateCorpus(7, 2, 3)
	if len(bundle.Environments) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(bundle.Environments))
	}
	if len(bundle.Workflows) != 6 {
		t.Fatalf("expected 6 workflows (2 envs * 3 scenarios), got %d", len(bundle.Workflows))
	}
	for _, wf := range bundle.Workflows {
		if len(wf.Spec.Steps) == 0 {
			t.Fatalf("scenario %s has no steps", wf.ScenarioID)
		}
		if wf.Spec.World == nil {
			t.Fatalf("scenario %s has no world block", wf.ScenarioID)
		}
	}
}

func TestWorkflowFamiliesCycleAcrossScenarios(t *testing.T) {
	bundle := GenerateCorpus(99, 1, len(WorkflowFamilies)+1)
	families := map[string]bool{}
	for _, wf := range bundle.Workflows {
		family, _ := wf.Spec.Metadata["workflow_family"].(string)
		families[family] = true
	}
	if len(families) != len(WorkflowFamilies) {
		t.Fatalf("expected all %d families to appear, got %d: %v", len(WorkflowFamilies), len(families), families)
	}
}
