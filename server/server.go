// Package server exposes the workflow engine over HTTP: POST /api/runs
// starts a run and returns its session id immediately; GET
// /api/runs/{id}/stream delivers the run's event stream over SSE,
// replaying buffered events so reconnecting clients lose nothing.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/providers/observability"
	"github.com/finflow-ai/finflow/stream"
	"github.com/finflow-ai/finflow/workflow/graph"
)

// Runner starts workflow runs. Implemented by graph.Engine.
type Runner interface {
	Run(ctx context.Context, query string, config graph.RunConfig) iter.Seq2[*state.State, error]
}

// Options configures the server.
type Options struct {
	// Reports persists final reports. Nil disables persistence.
	Reports stream.Saver

	// Observer receives spans and logs. Defaults to the no-op
	// provider.
	Observer observability.Provider

	// HeartbeatInterval for run streams. Defaults to the stream
	// package default.
	HeartbeatInterval time.Duration
}

// Server routes HTTP requests to the engine.
type Server struct {
	runner Runner
	opts   Options
	mux    *http.ServeMux

	records syncRecords
}

// New creates the server around a runner.
func New(runner Runner, opts Options) *Server {
	if opts.Observer == nil {
		opts.Observer = observability.Nop()
	}

	s := &Server{
		runner:  runner,
		opts:    opts,
		mux:     http.NewServeMux(),
		records: syncRecords{byID: make(map[string]*runRecord)},
	}
	s.mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	s.mux.HandleFunc("GET /api/runs/{id}/stream", s.handleStreamRun)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type createRunRequest struct {
	Query  string    `json:"query"`
	Config runConfig `json:"config"`
}

type runConfig struct {
	Credits      state.Credits                `json:"credits"`
	BudgetTier   model.Tier                   `json:"budget_tier"`
	LLMOverrides map[model.Class]model.Config `json:"llm_overrides"`
	MaxSteps     int                          `json:"max_steps"`
}

type createRunResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var request createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if request.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	sessionID := uuid.NewString()
	record := newRunRecord()
	s.records.put(sessionID, record)

	// The run outlives the request; it is driven by its own context.
	go s.execute(sessionID, request, record)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(createRunResponse{SessionID: sessionID})
}

// execute drives one run to completion, appending every stream event
// to the record.
func (s *Server) execute(sessionID string, request createRunRequest, record *runRecord) {
	defer record.finish()
	ctx := context.Background()

	run := s.runner.Run(ctx, request.Query, graph.RunConfig{
		SessionID: sessionID,
		Credits:   request.Config.Credits,
		Tier:      request.Config.BudgetTier,
		Overrides: request.Config.LLMOverrides,
		MaxSteps:  request.Config.MaxSteps,
	})

	for event, err := range stream.Follow(ctx, run, stream.Options{
		HeartbeatInterval: s.opts.HeartbeatInterval,
		Reports:           s.opts.Reports,
		Observer:          s.opts.Observer,
	}) {
		record.append(event)
		if err != nil {
			return
		}
	}
}

func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	record, ok := s.records.get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame(w, stream.Event{
		Type:      stream.EventConnectionEstablished,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	ctx := r.Context()
	for index := 0; ; index++ {
		event, ok := record.next(ctx, index)
		if !ok {
			return
		}
		if err := writeFrame(w, event); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeFrame(w http.ResponseWriter, event stream.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// syncRecords is the session -> run record registry.
type syncRecords struct {
	mu   sync.RWMutex
	byID map[string]*runRecord
}

func (r *syncRecords) put(id string, record *runRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = record
}

func (r *syncRecords) get(id string) (*runRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byID[id]
	return record, ok
}
