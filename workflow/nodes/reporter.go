package nodes

import (
	"context"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// reporter writes the final report into the shared state and ends the
// run. It is always terminal.
type reporter struct {
	config Config
}

// NewReporter returns the reporter node.
func NewReporter(config Config) graph.Node {
	return &reporter{config: config.normalized()}
}

func (n *reporter) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	prompt := reporterPrompt + researchContext(st) + taskContext(st)

	report, err := invokeText(ctx, n.config, st, model.AgentReporter, prompt)
	if err != nil {
		return nil, err
	}

	return &graph.Command{
		Goto: graph.End,
		Apply: func(st *state.State) {
			st.FinalReport = report
			st.AppendMessage("assistant", model.AgentReporter, report)
		},
	}, nil
}
