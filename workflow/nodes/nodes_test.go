package nodes

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// fakeProvider replays scripted responses and records the requests it
// received.
type fakeProvider struct {
	mu       sync.Mutex
	replies  []*ai.ChatResponse
	requests []ai.ChatRequest
}

func scripted(contents ...string) *fakeProvider {
	f := &fakeProvider{}
	for _, content := range contents {
		f.replies = append(f.replies, &ai.ChatResponse{Content: content, FinishReason: "stop"})
	}
	return f
}

func (f *fakeProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if len(f.replies) == 0 {
		return &ai.ChatResponse{Content: "{}", FinishReason: "stop"}, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeProvider) IsStopMessage(response *ai.ChatResponse) bool {
	return response == nil || response.FinishReason == "stop"
}

func (f *fakeProvider) WithAPIKey(string) ai.Provider           { return f }
func (f *fakeProvider) WithBaseURL(string) ai.Provider          { return f }
func (f *fakeProvider) WithHttpClient(*http.Client) ai.Provider { return f }

func configWith(provider ai.Provider) Config {
	return Config{
		Provider: func(model.Config) (ai.Provider, error) { return provider, nil },
	}
}

func newState(t *testing.T) *state.State {
	t.Helper()
	return state.New("session-1", "how did AAPL perform last quarter?",
		state.Credits{Researcher: 3, Coder: 3, Browser: 3, Market: 3},
		model.TierMedium, nil)
}

func apply(t *testing.T, command *graph.Command, st *state.State) {
	t.Helper()
	if command.Apply != nil {
		command.Apply(st)
	}
}

func TestCoordinatorHandoff(t *testing.T) {
	provider := scripted(`{
		"handoff_to_planner": true,
		"tickers": ["AAPL"],
		"ticker_type": "stock",
		"time_range": "last quarter",
		"locale": "en-US"
	}`)
	st := newState(t)

	command, err := NewCoordinator(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentPlanner {
		t.Fatalf("Goto = %q, want planner", command.Goto)
	}

	apply(t, command, st)
	if len(st.Tickers) != 1 || st.Tickers[0] != "AAPL" {
		t.Errorf("tickers = %v", st.Tickers)
	}
	if st.TickerType != "stock" || st.TimeRange != "last quarter" || st.Locale != "en-US" {
		t.Errorf("research params not applied: %+v", st)
	}
}

func TestCoordinatorDirectResponse(t *testing.T) {
	provider := scripted(`{"handoff_to_planner": false, "response": "Hello! Ask me about markets."}`)
	st := newState(t)

	command, err := NewCoordinator(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != graph.End {
		t.Fatalf("Goto = %q, want End", command.Goto)
	}

	apply(t, command, st)
	if got := st.LastMessage().Content; got != "Hello! Ask me about markets." {
		t.Errorf("last message = %q", got)
	}
	if st.FinalReport != "" {
		t.Error("direct response must not set the final report")
	}
}

func TestCoordinatorDegradedHandsOff(t *testing.T) {
	provider := scripted(`I am not JSON at all`)
	st := newState(t)

	command, err := NewCoordinator(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentPlanner {
		t.Fatalf("degraded coordinator Goto = %q, want planner", command.Goto)
	}
}

func TestPlannerProducesPlan(t *testing.T) {
	provider := scripted(`{
		"title": "AAPL quarterly review",
		"thought": "price history first, then news",
		"steps": [
			{"agent": "market", "title": "Price history", "description": "get last quarter OHLCV"},
			{"agent": "researcher", "title": "News", "description": "find earnings coverage"}
		]
	}`)
	st := newState(t)

	command, err := NewPlanner(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentSupervisor {
		t.Fatalf("Goto = %q, want supervisor", command.Goto)
	}

	apply(t, command, st)
	if st.Plan == nil {
		t.Fatal("plan not applied")
	}
	if len(st.Plan.Steps) != 2 || st.Plan.Steps[0].Agent != model.AgentMarket {
		t.Errorf("plan steps = %+v", st.Plan.Steps)
	}
}

func TestPlannerDegradedStillReachesSupervisor(t *testing.T) {
	provider := scripted(`no plan today`)
	st := newState(t)

	command, err := NewPlanner(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentSupervisor {
		t.Fatalf("Goto = %q, want supervisor", command.Goto)
	}

	apply(t, command, st)
	if st.Plan != nil {
		t.Error("degraded planner must not set a plan")
	}
}

func TestSupervisorDispatch(t *testing.T) {
	provider := scripted(`{
		"next": "market",
		"task": "fetch AAPL OHLCV for last quarter",
		"focus": "daily closes",
		"context": "user asked about last quarter performance"
	}`)
	st := newState(t)

	command, err := NewSupervisor(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentMarket {
		t.Fatalf("Goto = %q, want market", command.Goto)
	}

	apply(t, command, st)
	if st.Task == "" || st.Focus == "" || st.TaskContext == "" {
		t.Errorf("assignment not applied: task=%q focus=%q context=%q", st.Task, st.Focus, st.TaskContext)
	}
}

func TestSupervisorFinish(t *testing.T) {
	provider := scripted(`{"next": "FINISH"}`)
	st := newState(t)

	command, err := NewSupervisor(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != graph.End {
		t.Fatalf("Goto = %q, want End", command.Goto)
	}
}

func TestSupervisorDegradedRoutesToAnalyst(t *testing.T) {
	provider := scripted(`???`)
	st := newState(t)

	command, err := NewSupervisor(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentAnalyst {
		t.Fatalf("degraded supervisor Goto = %q, want analyst", command.Goto)
	}
}

func TestAnalystReportsToSupervisor(t *testing.T) {
	provider := scripted(`The data shows a 12% rise driven by earnings.`)
	st := newState(t)

	command, err := NewAnalyst(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != model.AgentSupervisor {
		t.Fatalf("Goto = %q, want supervisor", command.Goto)
	}

	apply(t, command, st)
	if st.LastMessage().Name != model.AgentAnalyst {
		t.Errorf("last message author = %q", st.LastMessage().Name)
	}
}

func TestReporterWritesFinalReport(t *testing.T) {
	provider := scripted("# AAPL Quarterly Review\n\nAAPL rose 12% over the quarter.")
	st := newState(t)

	command, err := NewReporter(configWith(provider)).Invoke(context.Background(), st)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if command.Goto != graph.End {
		t.Fatalf("Goto = %q, want End", command.Goto)
	}

	apply(t, command, st)
	if st.FinalReport == "" {
		t.Fatal("final report not set")
	}
}

// Full run through the wired engine: coordinator hands off, planner
// plans, supervisor dispatches the analyst, then the reporter ends the
// run with a report.
func TestBuildEngineFullRun(t *testing.T) {
	provider := scripted(
		`{"handoff_to_planner": true, "tickers": ["AAPL"], "ticker_type": "stock"}`,
		`{"title": "Review", "thought": "analyze directly", "steps": [{"agent": "analyst", "title": "Assess", "description": "assess the question"}]}`,
		`{"next": "analyst", "task": "assess the question"}`,
		`The question can be answered from general market knowledge.`,
		`{"next": "reporter", "task": "write the report"}`,
		"# Review\n\nFindings attached.",
	)

	engine, err := BuildEngine(configWith(provider))
	if err != nil {
		t.Fatalf("BuildEngine: %v", err)
	}

	var snapshots []*state.State
	for snapshot, err := range engine.Run(context.Background(), "review AAPL", graph.RunConfig{
		Credits: state.Credits{Researcher: 2, Coder: 2, Browser: 2, Market: 2},
		Tier:    model.TierMedium,
	}) {
		if err != nil {
			t.Fatalf("run error: %v", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	if len(snapshots) != 6 {
		t.Fatalf("snapshots = %d, want 6", len(snapshots))
	}

	order := []string{
		model.AgentCoordinator,
		model.AgentPlanner,
		model.AgentSupervisor,
		model.AgentAnalyst,
		model.AgentSupervisor,
		model.AgentReporter,
	}
	for i, want := range order {
		if got := snapshots[i].LastAgent; got != want {
			t.Errorf("snapshot %d agent = %q, want %q", i, got, want)
		}
	}

	final := snapshots[len(snapshots)-1]
	if final.FinalReport == "" {
		t.Error("final snapshot has no report")
	}
	if final.Next != graph.End {
		t.Errorf("final Next = %q, want End", final.Next)
	}
}
