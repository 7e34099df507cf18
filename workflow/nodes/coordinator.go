package nodes

import (
	"context"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/workflow/graph"
)

type coordinatorDecision struct {
	HandoffToPlanner bool     `json:"handoff_to_planner" jsonschema:"required,true when the request needs the research team"`
	Response         string   `json:"response,omitempty" jsonschema:"direct answer when no research is needed"`
	Tickers          []string `json:"tickers,omitempty" jsonschema:"instrument identifiers mentioned in the request"`
	TickerType       string   `json:"ticker_type,omitempty" jsonschema:"enum=stock|etf|crypto|forex|index"`
	TimeRange        string   `json:"time_range,omitempty" jsonschema:"period the user cares about"`
	Locale           string   `json:"locale,omitempty" jsonschema:"user locale, e.g. en-US"`
}

// coordinator triages the incoming query. Research requests hand off
// to the planner with the extracted research parameters; everything
// else gets a direct answer and the run ends.
type coordinator struct {
	config Config
}

// NewCoordinator returns the coordinator node.
func NewCoordinator(config Config) graph.Node {
	return &coordinator{config: config.normalized()}
}

func (n *coordinator) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	outcome, err := invokeStructured[coordinatorDecision](ctx, n.config, st, model.AgentCoordinator, coordinatorPrompt)
	if err != nil {
		return nil, err
	}

	// A reply we cannot interpret is treated as a handoff: losing the
	// extracted parameters is recoverable, dropping the run is not.
	if outcome.Degraded {
		return &graph.Command{
			Goto: model.AgentPlanner,
			Apply: func(st *state.State) {
				st.AppendMessage("assistant", model.AgentCoordinator, degradedContent(outcome.Raw))
			},
		}, nil
	}

	decision := *outcome.Data
	if !decision.HandoffToPlanner {
		return &graph.Command{
			Goto: graph.End,
			Apply: func(st *state.State) {
				st.AppendMessage("assistant", model.AgentCoordinator, decision.Response)
			},
		}, nil
	}

	return &graph.Command{
		Goto: model.AgentPlanner,
		Apply: func(st *state.State) {
			st.Tickers = decision.Tickers
			st.TickerType = decision.TickerType
			st.TimeRange = decision.TimeRange
			st.Locale = decision.Locale
			st.AppendMessage("assistant", model.AgentCoordinator, "handing off to the research team")
		},
	}, nil
}
