package nodes

import (
	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// BuildEngine wires the full financial-research team into a workflow
// engine: coordinator in, reporter out, supervisor loop in the middle.
func BuildEngine(config Config, opts ...graph.Option) (*graph.Engine, error) {
	c := config.normalized()

	descriptors := []graph.Descriptor{
		{
			Name:         model.AgentCoordinator,
			Destinations: []string{model.AgentPlanner, graph.End},
			Node:         NewCoordinator(c),
		},
		{
			Name:         model.AgentPlanner,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewPlanner(c),
		},
		{
			Name: model.AgentSupervisor,
			Destinations: []string{
				model.AgentResearcher,
				model.AgentMarket,
				model.AgentBrowser,
				model.AgentCoder,
				model.AgentAnalyst,
				model.AgentReporter,
				graph.End,
			},
			Node: NewSupervisor(c),
		},
		{
			Name:         model.AgentResearcher,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewResearcher(c),
		},
		{
			Name:         model.AgentMarket,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewMarket(c),
		},
		{
			Name:         model.AgentBrowser,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewBrowser(c),
		},
		{
			Name:         model.AgentCoder,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewCoder(c),
		},
		{
			Name:         model.AgentAnalyst,
			Destinations: []string{model.AgentSupervisor},
			Node:         NewAnalyst(c),
		},
		{
			Name:         model.AgentReporter,
			Destinations: []string{graph.End},
			Node:         NewReporter(c),
		},
	}

	return graph.New(model.AgentCoordinator, descriptors, opts...)
}
