package nodes

import (
	"context"
	"fmt"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// finishSentinel is the value the supervisor's model uses to end the
// run; it maps to graph.End before routing.
const finishSentinel = "FINISH"

type supervisorDecision struct {
	Next    string `json:"next" jsonschema:"required,enum=researcher|market|browser|coder|analyst|reporter|FINISH"`
	Task    string `json:"task,omitempty" jsonschema:"concrete instruction for the chosen agent"`
	Focus   string `json:"focus,omitempty" jsonschema:"the single question the agent must answer"`
	Context string `json:"context,omitempty" jsonschema:"facts from the conversation the agent needs"`
}

// supervisor dispatches plan steps to the team, one agent at a time,
// until it decides the run is finished.
type supervisor struct {
	config Config
}

// NewSupervisor returns the supervisor node.
func NewSupervisor(config Config) graph.Node {
	return &supervisor{config: config.normalized()}
}

func (n *supervisor) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	prompt := supervisorPrompt + researchContext(st) + creditContext(st)

	outcome, err := invokeStructured[supervisorDecision](ctx, n.config, st, model.AgentSupervisor, prompt)
	if err != nil {
		return nil, err
	}

	// Without a readable decision the safest dispatch is the analyst:
	// it needs no tools, spends no credits, and its reply gives the
	// next supervisor turn something to work with.
	if outcome.Degraded {
		return &graph.Command{
			Goto: model.AgentAnalyst,
			Apply: func(st *state.State) {
				st.AppendMessage("assistant", model.AgentSupervisor, degradedContent(outcome.Raw))
				st.Task, st.Focus, st.TaskContext = "", "", ""
			},
		}, nil
	}

	decision := *outcome.Data
	next := decision.Next
	if next == finishSentinel {
		next = graph.End
	}

	return &graph.Command{
		Goto: next,
		Apply: func(st *state.State) {
			st.Task = decision.Task
			st.Focus = decision.Focus
			st.TaskContext = decision.Context
			st.AppendMessage("assistant", model.AgentSupervisor, "next: "+decision.Next)
		},
	}, nil
}

// creditContext tells the supervisor how many invocations each worker
// has left, so it can route around depleted ones.
func creditContext(st *state.State) string {
	return fmt.Sprintf("\n\nRemaining worker credits: researcher=%d, market=%d, browser=%d, coder=%d",
		st.Credits.Researcher, st.Credits.Market, st.Credits.Browser, st.Credits.Coder)
}
