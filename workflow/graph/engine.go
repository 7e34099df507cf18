package graph

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/providers/observability"
)

// DefaultMaxSteps is the step ceiling applied when neither the engine
// nor the run configuration sets one.
const DefaultMaxSteps = 150

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	maxSteps       int
	enforceCredits bool
	obs            observability.Provider
}

// WithMaxSteps sets the default step ceiling for runs. A RunConfig can
// still lower or raise it per run.
func WithMaxSteps(maxSteps int) Option {
	return func(config *engineConfig) {
		config.maxSteps = maxSteps
	}
}

// WithEnforceCredits makes credit accounting binding: routing to a
// credit-tracked node whose counter is zero fails the run with
// ErrCreditsExhausted. The default is advisory accounting, where
// counters decrement but never block.
func WithEnforceCredits(enforce bool) Option {
	return func(config *engineConfig) {
		config.enforceCredits = enforce
	}
}

// WithObservability sets the observability provider for run spans and
// logs. Defaults to the no-op provider.
func WithObservability(obs observability.Provider) Option {
	return func(config *engineConfig) {
		config.obs = obs
	}
}

// RunConfig carries per-run settings.
type RunConfig struct {
	// SessionID identifies the run. Generated when empty.
	SessionID string

	// Credits seeds the per-agent credit counters.
	Credits state.Credits

	// Tier selects the model class assigned to each agent.
	Tier model.Tier

	// Overrides replaces resolved model configurations per class.
	Overrides map[model.Class]model.Config

	// MaxSteps overrides the engine's step ceiling when positive.
	MaxSteps int
}

// Engine executes runs over an immutable node registry.
type Engine struct {
	entry  string
	nodes  map[string]Descriptor
	config engineConfig
}

// New builds an engine from the given descriptors. entry names the
// node every run starts at. Registration is validated eagerly:
// duplicate names, missing nodes, and destinations that reference
// unregistered nodes all fail here rather than mid-run.
func New(entry string, descriptors []Descriptor, opts ...Option) (*Engine, error) {
	config := engineConfig{
		maxSteps: DefaultMaxSteps,
		obs:      observability.Nop(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	nodes := make(map[string]Descriptor, len(descriptors))
	for _, descriptor := range descriptors {
		if descriptor.Name == "" || descriptor.Name == End {
			return nil, fmt.Errorf("graph: invalid node name %q", descriptor.Name)
		}
		if descriptor.Node == nil {
			return nil, fmt.Errorf("graph: node %q has no implementation", descriptor.Name)
		}
		if _, dup := nodes[descriptor.Name]; dup {
			return nil, fmt.Errorf("graph: duplicate node %q", descriptor.Name)
		}
		nodes[descriptor.Name] = descriptor
	}
	for _, descriptor := range descriptors {
		for _, destination := range descriptor.Destinations {
			if destination == End {
				continue
			}
			if _, ok := nodes[destination]; !ok {
				return nil, fmt.Errorf("%w: %q routes to %q", ErrUnknownNode, descriptor.Name, destination)
			}
		}
	}
	if _, ok := nodes[entry]; !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrUnknownNode, entry)
	}

	return &Engine{entry: entry, nodes: nodes, config: config}, nil
}

// Run executes the workflow for one query and returns the sequence of
// state snapshots, one per completed node invocation. Each snapshot is
// a deep clone; consumers may retain or mutate them freely. The
// sequence ends after the snapshot of the node that routed to End, or
// after a single terminal error.
func (e *Engine) Run(ctx context.Context, query string, config RunConfig) iter.Seq2[*state.State, error] {
	return func(yield func(*state.State, error) bool) {
		sessionID := config.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		maxSteps := e.config.maxSteps
		if config.MaxSteps > 0 {
			maxSteps = config.MaxSteps
		}

		ctx, span := e.obs().StartSpan(ctx, observability.SpanWorkflowRun,
			observability.String(observability.AttrSessionID, sessionID),
			observability.String(observability.AttrBudgetTier, string(config.Tier)),
		)
		defer span.End()

		st := state.New(sessionID, query, config.Credits, config.Tier, config.Overrides)
		current := e.entry

		for step := 1; ; step++ {
			if err := ctx.Err(); err != nil {
				span.SetStatus(observability.StatusError, "canceled")
				yield(nil, err)
				return
			}
			if step > maxSteps {
				err := fmt.Errorf("%w: %d steps", ErrStepLimit, maxSteps)
				span.RecordError(err)
				yield(nil, err)
				return
			}

			descriptor := e.nodes[current]
			if e.config.enforceCredits {
				if left, tracked := st.Credits.Remaining(current); tracked && left <= 0 {
					err := fmt.Errorf("%w: %q", ErrCreditsExhausted, current)
					span.RecordError(err)
					yield(nil, err)
					return
				}
			}

			snapshot, next, err := e.invoke(ctx, descriptor, st, step)
			if err != nil {
				span.RecordError(err)
				yield(nil, err)
				return
			}
			if !yield(snapshot, nil) {
				return
			}
			if next == End {
				span.SetStatus(observability.StatusOK, "")
				return
			}
			current = next
		}
	}
}

// invoke runs one node against the engine's state and applies its
// command. The returned snapshot is a clone safe to hand out.
func (e *Engine) invoke(ctx context.Context, descriptor Descriptor, st *state.State, step int) (*state.State, string, error) {
	ctx, span := e.obs().StartSpan(ctx, observability.SpanNodeInvoke,
		observability.String(observability.AttrNodeName, descriptor.Name),
		observability.Int(observability.AttrStep, step),
	)
	defer span.End()

	command, err := descriptor.Node.Invoke(ctx, st)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("graph: node %q: %w", descriptor.Name, err)
	}
	if command == nil {
		return nil, "", fmt.Errorf("%w: node %q returned no command", ErrRouting, descriptor.Name)
	}
	if !allowed(descriptor, command.Goto) {
		return nil, "", fmt.Errorf("%w: %q -> %q", ErrRouting, descriptor.Name, command.Goto)
	}

	if command.Apply != nil {
		command.Apply(st)
	}
	st.LastAgent = descriptor.Name
	st.Next = command.Goto

	span.SetAttributes(observability.String(observability.AttrNodeNext, command.Goto))
	e.obs().Info(ctx, "node completed",
		observability.String(observability.AttrSessionID, st.SessionID),
		observability.String(observability.AttrNodeName, descriptor.Name),
		observability.String(observability.AttrNodeNext, command.Goto),
		observability.Int(observability.AttrStep, step),
	)

	return st.Clone(), command.Goto, nil
}

func (e *Engine) obs() observability.Provider {
	if e.config.obs == nil {
		return observability.Nop()
	}
	return e.config.obs
}

func allowed(descriptor Descriptor, destination string) bool {
	for _, d := range descriptor.Destinations {
		if d == destination {
			return true
		}
	}
	return false
}
