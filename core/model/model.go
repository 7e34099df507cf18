// Package model maps abstract LLM classes and budget tiers to concrete
// model configurations. The mapping is resolved per node invocation:
// run-level overrides win over the static tier table, which wins over
// environment defaults.
package model

// Agent names are the closed set of node identifiers used across the
// workflow. Routing is validated against this set at configuration time;
// an unrecognized name is always an error, never a default.
const (
	AgentCoordinator = "coordinator"
	AgentPlanner     = "planner"
	AgentSupervisor  = "supervisor"
	AgentResearcher  = "researcher"
	AgentMarket      = "market"
	AgentBrowser     = "browser"
	AgentCoder       = "coder"
	AgentAnalyst     = "analyst"
	AgentReporter    = "reporter"
)

// AgentNames lists every node in the workflow graph.
var AgentNames = []string{
	AgentCoordinator,
	AgentPlanner,
	AgentSupervisor,
	AgentResearcher,
	AgentMarket,
	AgentBrowser,
	AgentCoder,
	AgentAnalyst,
	AgentReporter,
}

// Class is an abstract quality/cost tier for an LLM, resolved to a concrete
// model and provider at call time.
type Class string

const (
	ClassBasic     Class = "basic"
	ClassReasoning Class = "reasoning"
	ClassCoding    Class = "coding"
	ClassEconomic  Class = "economic"
)

// Tier is a named budget preset selecting which LLM class each node uses.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// tierAgents maps every node name to an LLM class, per budget tier.
var tierAgents = map[Tier]map[string]Class{
	TierLow: {
		AgentCoordinator: ClassBasic,
		AgentPlanner:     ClassBasic,
		AgentSupervisor:  ClassBasic,
		AgentResearcher:  ClassBasic,
		AgentMarket:      ClassBasic,
		AgentBrowser:     ClassBasic,
		AgentCoder:       ClassBasic,
		AgentAnalyst:     ClassBasic,
		AgentReporter:    ClassBasic,
	},
	TierMedium: {
		AgentCoordinator: ClassBasic,
		AgentPlanner:     ClassReasoning,
		AgentSupervisor:  ClassBasic,
		AgentResearcher:  ClassBasic,
		AgentMarket:      ClassEconomic,
		AgentBrowser:     ClassBasic,
		AgentCoder:       ClassCoding,
		AgentAnalyst:     ClassEconomic,
		AgentReporter:    ClassBasic,
	},
	TierHigh: {
		AgentCoordinator: ClassBasic,
		AgentPlanner:     ClassReasoning,
		AgentSupervisor:  ClassReasoning,
		AgentResearcher:  ClassReasoning,
		AgentMarket:      ClassEconomic,
		AgentBrowser:     ClassBasic,
		AgentCoder:       ClassCoding,
		AgentAnalyst:     ClassEconomic,
		AgentReporter:    ClassReasoning,
	},
}

// AgentClasses returns a copy of the node-to-class assignment for the given
// budget tier. Unknown tiers fall back to TierMedium.
func AgentClasses(tier Tier) map[string]Class {
	table, ok := tierAgents[tier]
	if !ok {
		table = tierAgents[TierMedium]
	}
	assignment := make(map[string]Class, len(table))
	for agent, class := range table {
		assignment[agent] = class
	}
	return assignment
}
