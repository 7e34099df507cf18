package nodes

import (
	"context"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// analyst interprets the gathered evidence. It has no tools, spends no
// credits, and always reports back to the supervisor.
type analyst struct {
	config Config
}

// NewAnalyst returns the analyst node.
func NewAnalyst(config Config) graph.Node {
	return &analyst{config: config.normalized()}
}

func (n *analyst) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	prompt := analystPrompt + researchContext(st) + taskContext(st)

	analysis, err := invokeText(ctx, n.config, st, model.AgentAnalyst, prompt)
	if err != nil {
		return nil, err
	}

	return &graph.Command{
		Goto: model.AgentSupervisor,
		Apply: func(st *state.State) {
			st.AppendMessage("assistant", model.AgentAnalyst, analysis)
		},
	}, nil
}
