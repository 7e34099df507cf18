package server

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/report"
	"github.com/finflow-ai/finflow/report/inmem"
	"github.com/finflow-ai/finflow/stream"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// fakeRunner replays scripted snapshots, stamping them with the
// session id the server assigned.
type fakeRunner struct {
	snapshots []*state.State
	err       error
}

func (f *fakeRunner) Run(_ context.Context, query string, config graph.RunConfig) iter.Seq2[*state.State, error] {
	return func(yield func(*state.State, error) bool) {
		for _, snapshot := range f.snapshots {
			clone := snapshot.Clone()
			clone.SessionID = config.SessionID
			clone.Query = query
			if !yield(clone, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func reporterSnapshot(content string) *state.State {
	return &state.State{
		LastAgent:   model.AgentReporter,
		Next:        graph.End,
		FinalReport: content,
		Messages:    []state.Message{{Role: "assistant", Name: model.AgentReporter, Content: content}},
	}
}

func startRun(t *testing.T, s *Server, body string) string {
	t.Helper()

	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, recorder.Code, recorder.Body.String())

	var response createRunResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.NotEmpty(t, response.SessionID)
	return response.SessionID
}

// readStream performs the SSE request and parses the frames. The
// handler returns once the run record is finished, so the recorder
// holds the complete stream.
func readStream(t *testing.T, s *Server, sessionID string) []stream.Event {
	t.Helper()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/runs/"+sessionID+"/stream", nil)
	s.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))

	var events []stream.Event
	for _, frame := range strings.Split(recorder.Body.String(), "\n\n") {
		for _, line := range strings.Split(frame, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var event stream.Event
				require.NoError(t, json.Unmarshal([]byte(data), &event))
				events = append(events, event)
			}
		}
	}
	return events
}

func TestCreateRunValidation(t *testing.T) {
	s := New(&fakeRunner{}, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing query", `{"config": {}}`},
		{"malformed json", `{"query": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestStreamUnknownSession(t *testing.T) {
	s := New(&fakeRunner{}, Options{})

	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/runs/nope/stream", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRunAndStream(t *testing.T) {
	runner := &fakeRunner{snapshots: []*state.State{
		{LastAgent: model.AgentCoordinator, Next: model.AgentPlanner,
			Messages: []state.Message{{Role: "assistant", Name: model.AgentCoordinator, Content: "handing off"}}},
		reporterSnapshot("# Report\n\nDone."),
	}}
	s := New(runner, Options{})

	sessionID := startRun(t, s, `{"query": "review AAPL", "config": {"budget_tier": "medium"}}`)
	events := readStream(t, s, sessionID)

	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventConnectionEstablished, events[0].Type)
	assert.Equal(t, sessionID, events[0].SessionID)
	assert.Equal(t, stream.EventStreamComplete, events[len(events)-1].Type)

	var sawReporter bool
	for _, event := range events {
		if event.Type == stream.EventAgentOutput && event.Agent == model.AgentReporter {
			sawReporter = true
		}
	}
	assert.True(t, sawReporter, "reporter output missing: %+v", events)
}

func TestStreamReplayOnReconnect(t *testing.T) {
	runner := &fakeRunner{snapshots: []*state.State{reporterSnapshot("# R\n\nBody.")}}
	s := New(runner, Options{})

	sessionID := startRun(t, s, `{"query": "q"}`)

	first := readStream(t, s, sessionID)
	second := readStream(t, s, sessionID)

	// Every connection replays the full stream behind its own
	// connection_established frame.
	require.Equal(t, len(first), len(second))
	for i := 1; i < len(first); i++ {
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestRunPersistsReport(t *testing.T) {
	store := inmem.New()
	runner := &fakeRunner{snapshots: []*state.State{reporterSnapshot("# Saved Report\n\nBody.")}}
	s := New(runner, Options{Reports: report.NewService(store, nil)})

	sessionID := startRun(t, s, `{"query": "persist me"}`)
	events := readStream(t, s, sessionID)

	var status stream.Event
	for _, event := range events {
		if event.Type == stream.EventReportStatus {
			status = event
		}
	}
	require.Equal(t, stream.EventReportStatus, status.Type, "no report_status frame: %+v", events)
	assert.Equal(t, "saved", status.ReportStatus)

	stored, err := store.FindBySession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Saved Report", stored[0].Title)
	assert.Equal(t, "persist me", stored[0].Metadata.Query)
}

func TestRunFailureEndsStreamWithError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("engine failure")}
	s := New(runner, Options{})

	sessionID := startRun(t, s, `{"query": "q"}`)
	events := readStream(t, s, sessionID)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventError, last.Type)
	assert.Contains(t, last.Error, "engine failure")
}

func TestStreamFollowsLiveRun(t *testing.T) {
	// A slow runner: the stream connection opens before the run
	// finishes and still receives everything.
	gate := make(chan struct{})
	runner := &gatedRunner{gate: gate}
	s := New(runner, Options{})

	sessionID := startRun(t, s, `{"query": "q"}`)

	done := make(chan []stream.Event, 1)
	go func() { done <- readStream(t, s, sessionID) }()

	time.Sleep(20 * time.Millisecond)
	close(gate)

	select {
	case events := <-done:
		require.NotEmpty(t, events)
		assert.Equal(t, stream.EventStreamComplete, events[len(events)-1].Type)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not complete")
	}
}

type gatedRunner struct {
	gate chan struct{}
}

func (g *gatedRunner) Run(_ context.Context, _ string, config graph.RunConfig) iter.Seq2[*state.State, error] {
	return func(yield func(*state.State, error) bool) {
		<-g.gate
		snapshot := reporterSnapshot("# Late\n\nBody.")
		snapshot.SessionID = config.SessionID
		yield(snapshot, nil)
	}
}
