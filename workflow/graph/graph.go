package graph

import (
	"context"
	"errors"

	"github.com/finflow-ai/finflow/core/state"
)

// End is the terminal routing marker. A Command with Goto set to End
// finishes the run.
const End = "__end__"

var (
	// ErrUnknownNode indicates a build-time reference to a node that
	// was never registered.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrRouting indicates a node routed to a destination it did not
	// declare at build time.
	ErrRouting = errors.New("graph: routing violation")

	// ErrStepLimit indicates a run exceeded its step ceiling.
	ErrStepLimit = errors.New("graph: step limit exceeded")

	// ErrCreditsExhausted indicates enforced credit accounting blocked
	// routing to a node whose credit counter reached zero.
	ErrCreditsExhausted = errors.New("graph: credits exhausted")
)

// Command is a node's routing decision: where to go next plus a state
// mutation applied before the hop.
type Command struct {
	// Goto names the next node, or End to finish the run.
	Goto string

	// Apply mutates the run state before routing. May be nil when the
	// node produced no state change.
	Apply func(*state.State)
}

// Node is the interface every workflow node implements. Invoke reads
// the current state and returns a Command; it must not retain or
// mutate the state it receives.
type Node interface {
	Invoke(ctx context.Context, st *state.State) (*Command, error)
}

// NodeFunc adapts an ordinary function to the Node interface.
type NodeFunc func(ctx context.Context, st *state.State) (*Command, error)

// Invoke calls the underlying function.
func (f NodeFunc) Invoke(ctx context.Context, st *state.State) (*Command, error) {
	return f(ctx, st)
}

// Descriptor registers one node with the engine. Destinations is the
// complete set of destinations this node may route to, including End
// when the node can finish the run.
type Descriptor struct {
	Name         string
	Destinations []string
	Node         Node
}
