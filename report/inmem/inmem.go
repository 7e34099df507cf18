// Package inmem provides an in-memory report store for tests and
// single-process deployments.
package inmem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finflow-ai/finflow/report"
)

// Store keeps reports in memory, keyed by session. The zero value is
// not usable; call New.
type Store struct {
	mu        sync.RWMutex
	bySession map[string][]report.Report
}

var _ report.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{bySession: make(map[string][]report.Report)}
}

// Insert stores a copy of r under a fresh id.
func (s *Store) Insert(_ context.Context, r *report.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	stored.ID = uuid.NewString()
	s.bySession[stored.SessionID] = append(s.bySession[stored.SessionID], stored)
	return stored.ID, nil
}

// FindBySession returns the session's reports in insertion order.
func (s *Store) FindBySession(_ context.Context, sessionID string) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.bySession[sessionID]
	out := make([]report.Report, len(stored))
	copy(out, stored)
	return out, nil
}
