package quality

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/vei/internal/corpus"
	"github.com/haasonsaas/vei/internal/workflow"
)

// DefaultRealismThreshold is the minimum realism score a workflow must clear
// to be accepted, absent an explicit override.
const DefaultRealismThreshold = 0.55

// FilterCorpus scores every generated workflow and partitions it into
// accepted/rejected based on fingerprint novelty, realism, runnability, and
// structural novelty (spec.md §4.6's acceptance rule).
func FilterCorpus(workflows []corpus.GeneratedWorkflowSpec, realismThreshold float64) Report {
	if realismThreshold <= 0 {
		realismThreshold = DefaultRealismThreshold
	}

	seenFingerprints := map[string]bool{}
	structureCounter := map[string]int{}
	var accepted, rejected []Score

	for _, wf := range workflows {
		fp := WorkflowFingerprint(wf.Spec)
		key := structureKey(wf.Spec)
		structureCounter[key]++
		novelty := 1.0 / float64(structureCounter[key])
		realism := RealismScore(wf.Spec)
		runnability := RunnabilityScore(wf.Spec)

		var reasons []string
		acceptedFlag := true

		if seenFingerprints[fp] {
			reasons = append(reasons, "duplicate_fingerprint")
			acceptedFlag = false
		}
		if realism < realismThreshold {
			reasons = append(reasons, fmt.Sprintf("realism_below_threshold:%.3f", realism))
			acceptedFlag = false
		}
		if runnability < 1.0 {
			reasons = append(reasons, "static_runnability_failed")
			acceptedFlag = false
		}
		if novelty < 0.2 {
			reasons = append(reasons, fmt.Sprintf("low_structural_novelty:%.3f", novelty))
			acceptedFlag = false
		}

		score := Score{
			ScenarioID:       wf.ScenarioID,
			Fingerprint:      fp,
			RealismScore:     realism,
			NoveltyScore:     novelty,
			RunnabilityScore: runnability,
			Accepted:         acceptedFlag,
			Reasons:          reasons,
		}

		if acceptedFlag {
			seenFingerprints[fp] = true
			accepted = append(accepted, score)
		} else {
			rejected = append(rejected, score)
		}
	}

	return Report{Accepted: accepted, Rejected: rejected}
}

// WorkflowFingerprint hashes a canonicalized encoding of spec, with
// metadata.scenario_seed stripped so two runs of the same family/shape
// collide regardless of which random seed produced them.
func WorkflowFingerprint(spec workflow.Spec) string {
	normalized := normalizedSpec(spec)
	raw, _ := json.Marshal(normalized)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)
}

func normalizedSpec(spec workflow.Spec) map[string]any {
	raw, _ := json.Marshal(spec)
	var generic map[string]any
	_ = json.Unmarshal(raw, &generic)
	if metadata, ok := generic["metadata"].(map[string]any); ok {
		delete(metadata, "scenario_seed")
		generic["metadata"] = metadata
	}
	return generic
}

// RealismScore is a weighted rubric over a workflow spec's shape, in [0, 1].
func RealismScore(spec workflow.Spec) float64 {
	score := 0.0
	if spec.Objective.Statement != "" {
		score += 0.2
	}

	count := len(spec.Steps)
	switch {
	case count >= 4 && count <= 12:
		score += 0.2
	case count >= 3:
		score += 0.1
	}

	services := map[string]bool{}
	for _, step := range spec.Steps {
		if svc := toolService(step.Tool); svc != "" {
			services[svc] = true
		}
	}
	score += minFloat(0.3, 0.1*float64(len(services)))
	if services["browser"] && services["mail"] && services["slack"] {
		score += 0.15
	}
	if services["tickets"] || services["docs"] {
		score += 0.1
	}
	if services["db"] {
		score += 0.05
	}
	if services["crm"] {
		score += 0.05
	}
	if services["erp"] {
		score += 0.05
	}
	if services["okta"] {
		score += 0.05
	}
	if services["servicedesk"] {
		score += 0.05
	}
	if services["okta"] && services["servicedesk"] {
		score += 0.05
	}

	if len(spec.Approvals) > 0 {
		score += 0.05
	}
	if len(spec.Constraints) > 0 {
		score += 0.05
	}

	return maxFloat(0.0, minFloat(1.0, score))
}

// RunnabilityScore compiles and statically validates spec, returning 1.0 if
// it is structurally sound and 0.0 otherwise.
func RunnabilityScore(spec workflow.Spec) float64 {
	compiled, err := workflow.Compile(spec, nil)
	if err != nil {
		return 0.0
	}
	report := workflow.StaticValidate(compiled, nil)
	if report.OK {
		return 1.0
	}
	return 0.0
}

func toolService(tool string) string {
	idx := strings.Index(tool, ".")
	if idx < 0 {
		return ""
	}
	service := tool[:idx]
	switch service {
	case "salesforce", "hubspot":
		return "crm"
	case "xero", "netsuite", "dynamics", "quickbooks":
		return "erp"
	default:
		return service
	}
}

func structureKey(spec workflow.Spec) string {
	if len(spec.Steps) == 0 {
		return "none"
	}
	services := make([]string, 0, len(spec.Steps))
	for _, step := range spec.Steps {
		services = append(services, toolService(step.Tool))
	}
	return strings.Join(services, "|")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
