package nodes

import (
	"context"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/workflow/graph"
)

type plannerStep struct {
	Agent       string `json:"agent" jsonschema:"required,enum=researcher|market|browser|coder|analyst"`
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description" jsonschema:"required,what this step must find out"`
}

type plannerDecision struct {
	Title   string        `json:"title" jsonschema:"required"`
	Thought string        `json:"thought" jsonschema:"required,reasoning behind the plan"`
	Steps   []plannerStep `json:"steps" jsonschema:"required"`
}

// planner drafts the research plan and always hands control to the
// supervisor, with or without a usable plan.
type planner struct {
	config Config
}

// NewPlanner returns the planner node.
func NewPlanner(config Config) graph.Node {
	return &planner{config: config.normalized()}
}

func (n *planner) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	prompt := plannerPrompt + researchContext(st)

	outcome, err := invokeStructured[plannerDecision](ctx, n.config, st, model.AgentPlanner, prompt)
	if err != nil {
		return nil, err
	}

	if outcome.Degraded {
		return &graph.Command{
			Goto: model.AgentSupervisor,
			Apply: func(st *state.State) {
				st.AppendMessage("assistant", model.AgentPlanner, degradedContent(outcome.Raw))
			},
		}, nil
	}

	decision := *outcome.Data
	plan := &state.Plan{Title: decision.Title, Thought: decision.Thought}
	for _, step := range decision.Steps {
		plan.Steps = append(plan.Steps, state.PlanStep{
			Agent:       step.Agent,
			Title:       step.Title,
			Description: step.Description,
		})
	}

	return &graph.Command{
		Goto: model.AgentSupervisor,
		Apply: func(st *state.State) {
			st.Plan = plan
			st.AppendMessage("assistant", model.AgentPlanner, outcome.Raw)
		},
	}, nil
}
