// Package corpus implements the seeded corpus generator (spec.md §4.6): a
// pure function of (seed, environment_count, scenarios_per_environment) that
// produces a deterministic bundle of enterprise environments and workflow
// specs, grounded on original_source/vei/corpus/generator.py.
package corpus

import "github.com/haasonsaas/vei/internal/workflow"

// EnterpriseProfile describes one generated organization.
type EnterpriseProfile struct {
	OrgID         string   `json:"org_id"`
	OrgName       string   `json:"org_name"`
	PrimaryDomain string   `json:"primary_domain"`
	Departments   []string `json:"departments,omitempty"`
	BudgetCapUSD  int      `json:"budget_cap_usd"`
}

// GeneratedEnvironment is one generated organization plus the world block
// every scenario drawn from it shares.
type GeneratedEnvironment struct {
	EnvID         string            `json:"env_id"`
	Seed          int64             `json:"seed"`
	Profile       EnterpriseProfile `json:"profile"`
	WorldTemplate map[string]any    `json:"world_template,omitempty"`
}

// GeneratedWorkflowSpec is one generated scenario tied back to its environment.
type GeneratedWorkflowSpec struct {
	ScenarioID string        `json:"scenario_id"`
	EnvID      string        `json:"env_id"`
	Seed       int64         `json:"seed"`
	Spec       workflow.Spec `json:"spec"`
}

// Bundle is the full output of GenerateCorpus.
type Bundle struct {
	Seed         int64                   `json:"seed"`
	Environments []GeneratedEnvironment  `json:"environments"`
	Workflows    []GeneratedWorkflowSpec `json:"workflows"`
	Metadata     map[string]any          `json:"metadata"`
}
