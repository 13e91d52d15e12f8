package quality

import (
	"testing"

	"github.com/haasonsaas/vei/internal/corpus"
)

func TestFilterCorpusAcceptsGeneratedWorkflows(t *testing.T) {
	bundle := corpus.GenerateCorpus(42042, 2, 7)
	report := FilterCorpus(bundle.Workflows, DefaultRealismThreshold)

	if len(report.Accepted) == 0 {
		t.Fatalf("expected at least one accepted workflow, rejected=%+v", report.Rejected)
	}
	for _, s := range report.Accepted {
		if s.RunnabilityScore != 1.0 {
			t.Fatalf("accepted scenario %s has runnability %v, want 1.0", s.ScenarioID, s.RunnabilityScore)
		}
		if s.RealismScore < DefaultRealismThreshold {
			t.Fatalf("accepted scenario %s has realism %v below threshold", s.ScenarioID, s.RealismScore)
		}
	}
}

func TestWorkflowFingerprintIgnoresScenarioSeed(t *testing.T) {
	bundle := corpus.GenerateCorpus(1, 1, 1)
	wf := bundle.Workflows[0]

	fpBefore := WorkflowFingerprint(wf.Spec)
	wf.Spec.Metadata["scenario_seed"] = int64(999999)
	fpAfter := WorkflowFingerprint(wf.Spec)

	if fpBefore != fpAfter {
		t.Fatalf("expected fingerprint to ignore scenario_seed, got %s vs %s", fpBefore, fpAfter)
	}
}

func TestFilterCorpusDedupesIdenticalFingerprints(t *testing.T) {
	bundle := corpus.GenerateCorpus(5, 1, 1)
	wf := bundle.Workflows[0]
	duplicated := []corpus.GeneratedWorkflowSpec{wf, wf}

	report := FilterCorpus(duplicated, DefaultRealismThreshold)
	if len(report.Accepted) != 1 {
		t.Fatalf("expected exactly one accepted workflow out of an exact duplicate pair, got %d", len(report.Accepted))
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Reasons[0] != "duplicate_fingerprint" {
		t.Fatalf("expected the duplicate to be rejected with duplicate_fingerprint, got %+v", report.Rejected)
	}
}

func TestRealismScoreRewardsServiceDiversity(t *testing.T) {
	bundle := corpus.GenerateCorpus(11, 1, len(corpus.WorkflowFamilies))
	var minScore, maxScore float64 = 1.0, 0.0
	for _, wf := range bundle.Workflows {
		score := RealismScore(wf.Spec)
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore <= 0 {
		t.Fatalf("expected a positive realism score for at least one generated workflow")
	}
	if maxScore <= minScore {
		t.Fatalf("expected realism scores to differ across families with different service mixes, got min=%v max=%v", minScore, maxScore)
	}
}
