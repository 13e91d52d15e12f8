// Package quality implements the corpus acceptance gate (spec.md §4.6):
// fingerprint-based dedup, a realism rubric, and a static-runnability check,
// grounded on original_source/vei/quality/filter.py.
package quality

// Score is one workflow's acceptance verdict.
type Score struct {
	ScenarioID       string   `json:"scenario_id"`
	Fingerprint      string   `json:"fingerprint"`
	RealismScore     float64  `json:"realism_score"`
	NoveltyScore     float64  `json:"novelty_score"`
	RunnabilityScore float64  `json:"runnability_score"`
	Accepted         bool     `json:"accepted"`
	Reasons          []string `json:"reasons,omitempty"`
}

// Report partitions a corpus into accepted and rejected scores.
type Report struct {
	Accepted []Score `json:"accepted"`
	Rejected []Score `json:"rejected"`
}
