package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
)

// routeTo returns a node that appends one message and routes to the
// given destination.
func routeTo(destination string) Node {
	return NodeFunc(func(_ context.Context, _ *state.State) (*Command, error) {
		return &Command{
			Goto: destination,
			Apply: func(st *state.State) {
				st.AppendMessage("assistant", st.Next, "visited")
			},
		}, nil
	})
}

// bounceN routes to bounce up to n times, then to End.
func bounceN(n int, bounce string) Node {
	count := 0
	return NodeFunc(func(_ context.Context, _ *state.State) (*Command, error) {
		count++
		if count > n {
			return &Command{Goto: End}, nil
		}
		return &Command{Goto: bounce}, nil
	})
}

func collect(t *testing.T, seq func(func(*state.State, error) bool)) ([]*state.State, error) {
	t.Helper()
	var snapshots []*state.State
	var failure error
	for snapshot, err := range seq {
		if err != nil {
			failure = err
			break
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, failure
}

func TestRunTerminatesAtEnd(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{"b"}, Node: routeTo("b")},
		{Name: "b", Destinations: []string{End}, Node: routeTo(End)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snapshots))
	}
	if got := snapshots[1].Next; got != End {
		t.Errorf("final Next = %q, want End", got)
	}
	if got := snapshots[1].LastAgent; got != "b" {
		t.Errorf("final LastAgent = %q", got)
	}
}

func TestRunMessageHistoryGrowsMonotonically(t *testing.T) {
	engine, err := New("loop", []Descriptor{
		{Name: "loop", Destinations: []string{"work", End}, Node: bounceN(3, "work")},
		{Name: "work", Destinations: []string{"loop"}, Node: routeTo("loop")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(snapshots) < 3 {
		t.Fatalf("snapshots = %d, want a looping run", len(snapshots))
	}

	for i := 1; i < len(snapshots); i++ {
		previous, current := snapshots[i-1].Messages, snapshots[i].Messages
		if len(current) < len(previous) {
			t.Fatalf("snapshot %d lost messages: %d -> %d", i, len(previous), len(current))
		}
		for j := range previous {
			if current[j] != previous[j] {
				t.Fatalf("snapshot %d rewrote message %d", i, j)
			}
		}
	}
}

func TestRunSnapshotsAreIsolated(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{"b"}, Node: routeTo("b")},
		{Name: "b", Destinations: []string{End}, Node: routeTo(End)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	// Mutating an earlier snapshot must not leak into later ones.
	snapshots[0].Messages[0].Content = "tampered"
	if snapshots[1].Messages[0].Content == "tampered" {
		t.Error("snapshots share message backing storage")
	}
}

func TestRunRoutingViolation(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{End}, Node: routeTo("rogue")},
		{Name: "rogue", Destinations: []string{End}, Node: routeTo(End)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if !errors.Is(err, ErrRouting) {
		t.Fatalf("err = %v, want ErrRouting", err)
	}
	if !strings.Contains(err.Error(), "rogue") {
		t.Errorf("error %q does not name the destination", err)
	}
}

func TestRunStepLimit(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{"b"}, Node: routeTo("b")},
		{Name: "b", Destinations: []string{"a"}, Node: routeTo("a")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{MaxSteps: 7}))
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("err = %v, want ErrStepLimit", err)
	}
	if len(snapshots) != 7 {
		t.Errorf("snapshots before limit = %d, want 7", len(snapshots))
	}
}

func TestRunNilCommand(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{End}, Node: NodeFunc(func(context.Context, *state.State) (*Command, error) {
			return nil, nil
		})},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if !errors.Is(err, ErrRouting) {
		t.Fatalf("err = %v, want ErrRouting", err)
	}
}

func TestRunNodeError(t *testing.T) {
	boom := errors.New("boom")
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{End}, Node: NodeFunc(func(context.Context, *state.State) (*Command, error) {
			return nil, boom
		})},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped node error", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{"b"}, Node: NodeFunc(func(context.Context, *state.State) (*Command, error) {
			cancel() // cancel mid-run; the loop must stop before the next node
			return &Command{Goto: "b"}, nil
		})},
		{Name: "b", Destinations: []string{End}, Node: routeTo(End)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = collect(t, engine.Run(ctx, "q", RunConfig{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunCreditsAdvisory(t *testing.T) {
	spender := NodeFunc(func(_ context.Context, _ *state.State) (*Command, error) {
		return &Command{
			Goto: "router",
			Apply: func(st *state.State) {
				st.Credits.Spend(model.AgentResearcher)
			},
		}, nil
	})

	engine, err := New("router", []Descriptor{
		{Name: "router", Destinations: []string{model.AgentResearcher, End}, Node: bounceN(5, model.AgentResearcher)},
		{Name: model.AgentResearcher, Destinations: []string{"router"}, Node: spender},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{
		Credits: state.Credits{Researcher: 3},
	}))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	final := snapshots[len(snapshots)-1]
	if got, _ := final.Credits.Remaining(model.AgentResearcher); got != 0 {
		t.Errorf("researcher credits = %d, want floor at 0 after 5 spends of 3", got)
	}
}

func TestRunCreditsEnforced(t *testing.T) {
	spender := NodeFunc(func(_ context.Context, _ *state.State) (*Command, error) {
		return &Command{
			Goto: "router",
			Apply: func(st *state.State) {
				st.Credits.Spend(model.AgentResearcher)
			},
		}, nil
	})

	engine, err := New("router", []Descriptor{
		{Name: "router", Destinations: []string{model.AgentResearcher, End}, Node: bounceN(5, model.AgentResearcher)},
		{Name: model.AgentResearcher, Destinations: []string{"router"}, Node: spender},
	}, WithEnforceCredits(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{
		Credits: state.Credits{Researcher: 2},
	}))
	if !errors.Is(err, ErrCreditsExhausted) {
		t.Fatalf("err = %v, want ErrCreditsExhausted", err)
	}

	// Two researcher invocations succeed, plus the router hops around
	// them; the third researcher hop is blocked.
	researcherRuns := 0
	for _, snapshot := range snapshots {
		if snapshot.LastAgent == model.AgentResearcher {
			researcherRuns++
		}
	}
	if researcherRuns != 2 {
		t.Errorf("researcher invocations = %d, want 2", researcherRuns)
	}
}

func TestRunGeneratesSessionID(t *testing.T) {
	engine, err := New("a", []Descriptor{
		{Name: "a", Destinations: []string{End}, Node: routeTo(End)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshots, err := collect(t, engine.Run(context.Background(), "q", RunConfig{}))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if snapshots[0].SessionID == "" {
		t.Error("session id not generated")
	}
}

func TestNewValidation(t *testing.T) {
	node := routeTo(End)

	tests := []struct {
		name        string
		entry       string
		descriptors []Descriptor
	}{
		{
			name:  "unknown entry",
			entry: "missing",
			descriptors: []Descriptor{
				{Name: "a", Destinations: []string{End}, Node: node},
			},
		},
		{
			name:  "unknown destination",
			entry: "a",
			descriptors: []Descriptor{
				{Name: "a", Destinations: []string{"ghost"}, Node: node},
			},
		},
		{
			name:  "duplicate node",
			entry: "a",
			descriptors: []Descriptor{
				{Name: "a", Destinations: []string{End}, Node: node},
				{Name: "a", Destinations: []string{End}, Node: node},
			},
		},
		{
			name:  "nil node",
			entry: "a",
			descriptors: []Descriptor{
				{Name: "a", Destinations: []string{End}},
			},
		},
		{
			name:  "reserved name",
			entry: End,
			descriptors: []Descriptor{
				{Name: End, Destinations: []string{End}, Node: node},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.entry, tt.descriptors); err == nil {
				t.Error("expected build error")
			}
		})
	}
}
