package corpus

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/haasonsaas/vei/internal/workflow"
)

var orgStems = []string{
	"MacroCompute", "Northwind", "Acme Dynamics", "Blue Harbor",
	"SummitWorks", "Atlas Forge", "QuantaBridge",
}

var orgSuffixes = []string{"Inc", "Group", "Systems", "Holdings"}

var departments = []string{"Finance", "Procurement", "Security", "Operations", "PeopleOps", "Legal"}

var vendorNames = []string{"MacroCompute", "Dell Business", "HP Enterprise", "Lenovo Pro", "Acer Commercial"}

// WorkflowFamilies is the fixed set of generated scenario shapes.
var WorkflowFamilies = []string{
	"procurement_quote", "db_audit", "sales_pipeline", "calendar_review",
	"risk_escalation", "identity_access_review", "procure_to_pay",
}

type vendorInfo struct {
	Name      string
	PriceLow  int
	PriceHigh int
	EtaLow    int
	EtaHigh   int
}

// GenerateCorpus is a pure function of its three parameters: identical
// arguments always produce a byte-identical bundle.
func GenerateCorpus(seed int64, environmentCount, scenariosPerEnvironment int) Bundle {
	rng := rand.New(rand.NewSource(seed))
	if environmentCount < 1 {
		environmentCount = 1
	}
	if scenariosPerEnvironment < 1 {
		scenariosPerEnvironment = 1
	}

	var environments []GeneratedEnvironment
	var workflows []GeneratedWorkflowSpec

	for envIdx := 0; envIdx < environmentCount; envIdx++ {
		envSeed := int64(randIntn(rng, 1, 10_000_000))
		env := generateEnvironment(envSeed, envIdx)
		environments = append(environments, env)
		for scenarioIdx := 0; scenarioIdx < scenariosPerEnvironment; scenarioIdx++ {
			workflowSeed := int64(randIntn(rng, 1, 10_000_000))
			workflows = append(workflows, generateWorkflowSpec(env, workflowSeed, scenarioIdx))
		}
	}

	return Bundle{
		Seed:         seed,
		Environments: environments,
		Workflows:    workflows,
		Metadata: map[string]any{
			"environment_count": len(environments),
			"workflow_count":    len(workflows),
		},
	}
}

func generateEnvironment(seed int64, index int) GeneratedEnvironment {
	rng := rand.New(rand.NewSource(seed))
	orgStem := orgStems[index%len(orgStems)]
	orgName := fmt.Sprintf("%s %s", orgStem, choice(rng, orgSuffixes))
	domainToken := strings.ToLower(strings.ReplaceAll(orgStem, " ", ""))
	primaryDomain := domainToken + ".example"
	budgetCap := randIntn(rng, 1800, 5500)
	vendors := sampleVendors(rng)
	poID := fmt.Sprintf("PO-%04d", index+1)
	approvalID := fmt.Sprintf("APR-%04d", index+1)

	worldTemplate := map[string]any{
		"vendors":              vendorNamesOnly(vendors),
		"slack_initial_message": fmt.Sprintf("Procurement run for %s. Include budget and citation in approvals.", orgName),
		"browser_nodes":        browserNodes(vendors),
		"browser_start_node_id": "home",
		"database_tables": []map[string]any{
			{
				"table": "procurement_orders",
				"rows": []map[string]any{
					{
						"id":          poID,
						"vendor":      vendors[0].Name,
						"amount_usd":  vendors[0].PriceHigh,
						"status":      "PENDING_APPROVAL",
						"cost_center": "IT-OPS",
					},
				},
			},
			{
				"table": "approval_audit",
				"rows": []map[string]any{
					{
						"id":          approvalID,
						"entity_type": "purchase_order",
						"entity_id":   poID,
						"status":      "PENDING",
						"approver":    "finance@" + primaryDomain,
					},
				},
			},
		},
		"metadata": map[string]any{
			"budget_cap_usd": budgetCap,
		},
	}

	return GeneratedEnvironment{
		EnvID: fmt.Sprintf("ENV-%04d", index+1),
		Seed:  seed,
		Profile: EnterpriseProfile{
			OrgID:         fmt.Sprintf("ORG-%04d", index+1),
			OrgName:       orgName,
			PrimaryDomain: primaryDomain,
			Departments:   sampleDepartments(rng),
			BudgetCapUSD:  budgetCap,
		},
		WorldTemplate: worldTemplate,
	}
}

func generateWorkflowSpec(env GeneratedEnvironment, seed int64, index int) GeneratedWorkflowSpec {
	rng := rand.New(rand.NewSource(seed))
	approver := fmt.Sprintf("approver%d@%s", index+1, env.Profile.PrimaryDomain)
	quoteTo := fmt.Sprintf("vendor%d@%s", index+1, env.Profile.PrimaryDomain)
	scenarioID := fmt.Sprintf("%s-SCN-%04d", env.EnvID, index+1)
	family := WorkflowFamilies[index%len(WorkflowFamilies)]
	budget := chooseBudget(rng, env.Profile.BudgetCapUSD)
	envNumber := strings.TrimPrefix(env.EnvID, "ENV-")
	poID := fmt.Sprintf("PO-%s-%03d", envNumber, index+1)
	crmDealCreateTool := crmToolName("deal_create")
	crmActivityTool := crmToolName("activity_log")

	objective := objectiveForFamily(family)
	success := successForFamily(family)
	steps := stepsForFamily(family, scenarioID, env.Profile.OrgName, quoteTo, approver, budget, poID, crmDealCreateTool, crmActivityTool)
	failurePaths := failurePathsForFamily(family)

	tagChoices := []string{"procurement", "finance", "ops"}
	spec := workflow.Spec{
		Name:      scenarioID,
		Objective: workflow.ObjectiveSpec{Statement: objective, Success: success},
		World:     env.WorldTemplate,
		Actors: []workflow.ActorSpec{
			{ActorID: "agent", Role: "procurement_operator", Email: "agent@" + env.Profile.PrimaryDomain},
			{ActorID: "approver", Role: "finance_manager", Email: approver},
		},
		Constraints: []workflow.ConstraintSpec{
			{Name: "budget_cap", Description: fmt.Sprintf("Approval amount must be <= %d", env.Profile.BudgetCapUSD), Required: true},
			{Name: "citation_required", Description: "At least one browser/doc read action before approval", Required: true},
		},
		Approvals: []workflow.ApprovalSpec{
			{Stage: "finance", Approver: approver, Required: true, Evidence: "slack thread + ticket or db audit row"},
		},
		Steps:             steps,
		SuccessAssertions: []workflow.AssertionSpec{{Kind: workflow.AssertPendingMax, Field: "total", MaxValue: intPtr(20)}},
		FailurePaths:      failurePaths,
		Tags:              []string{"generated", "enterprise", family, choice(rng, tagChoices)},
		Metadata: map[string]any{
			"environment_id":      env.EnvID,
			"scenario_seed":       seed,
			"workflow_family":     family,
			"crm_deal_create_tool": crmDealCreateTool,
			"crm_activity_tool":    crmActivityTool,
		},
	}

	return GeneratedWorkflowSpec{ScenarioID: scenarioID, EnvID: env.EnvID, Seed: seed, Spec: spec}
}

func sampleDepartments(rng *rand.Rand) []string {
	count := randIntn(rng, 3, 5)
	picked := sample(rng, departments, count)
	sort.Strings(picked)
	return picked
}

func sampleVendors(rng *rand.Rand) []vendorInfo {
	names := sample(rng, vendorNames, 3)
	vendors := make([]vendorInfo, 0, len(names))
	for _, name := range names {
		basePrice := randIntn(rng, 1200, 4200)
		eta := randIntn(rng, 3, 10)
		etaLow := eta - 1
		if etaLow < 1 {
			etaLow = 1
		}
		vendors = append(vendors, vendorInfo{
			Name: name, PriceLow: basePrice - 200, PriceHigh: basePrice + 200,
			EtaLow: etaLow, EtaHigh: eta + 1,
		})
	}
	return vendors
}

func vendorNamesOnly(vendors []vendorInfo) []string {
	out := make([]string, len(vendors))
	for i, v := range vendors {
		out[i] = v.Name
	}
	return out
}

func browserNodes(vendors []vendorInfo) []map[string]any {
	homeAffordances := []string{}
	homeNext := map[string]string{}
	nodes := []map[string]any{}

	for idx, v := range vendors {
		slug := fmt.Sprintf("vendor_%d", idx+1)
		homeAffordances = append(homeAffordances, slug)
		homeNext[slug] = slug
		nodes = append(nodes, map[string]any{
			"node_id": slug,
			"url":     fmt.Sprintf("https://vweb.local/vendor/%d", idx+1),
			"title":   v.Name,
			"excerpt": fmt.Sprintf("Price range %d-%d USD, ETA %d-%d days.", v.PriceLow, v.PriceHigh, v.EtaLow, v.EtaHigh),
			"affordances": []string{"back"},
			"next":        map[string]string{"back": "home"},
		})
	}

	home := map[string]any{
		"node_id":     "home",
		"url":         "https://vweb.local/home",
		"title":       "Enterprise Procurement Catalog",
		"excerpt":     "Choose a vendor and review offer details.",
		"affordances": homeAffordances,
		"next":        homeNext,
	}
	return append([]map[string]any{home}, nodes...)
}

func chooseBudget(rng *rand.Rand, cap int) int {
	budget := cap - randIntn(rng, 50, 300)
	if budget < 500 {
		budget = 500
	}
	return budget
}

// crmToolName mirrors the original's VEI_CRM_ALIAS_PACKS environment toggle,
// letting the generated corpus exercise vendor-branded CRM tool aliases.
func crmToolName(operation string) string {
	packsEnv := os.Getenv("VEI_CRM_ALIAS_PACKS")
	if packsEnv == "" {
		packsEnv = "hubspot,salesforce"
	}
	packs := map[string]bool{}
	for _, p := range strings.Split(packsEnv, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			packs[p] = true
		}
	}
	if packs["salesforce"] {
		if operation == "deal_create" {
			return "salesforce.opportunity.create"
		}
		if operation == "activity_log" {
			return "salesforce.activity.log"
		}
	}
	if packs["hubspot"] {
		if operation == "deal_create" {
			return "hubspot.deals.create"
		}
		if operation == "activity_log" {
			return "hubspot.activities.log"
		}
	}
	if operation == "deal_create" {
		return "crm.create_deal"
	}
	return "crm.log_activity"
}

func intPtr(v int) *int { return &v }

func choice(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

// randIntn returns an integer in [lo, hi], inclusive, mirroring Python's randint.
func randIntn(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// sample draws k distinct elements from options without replacement,
// mirroring Python's random.sample (order is the draw order, not input order).
func sample(rng *rand.Rand, options []string, k int) []string {
	if k > len(options) {
		k = len(options)
	}
	pool := append([]string(nil), options...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:k]
}
