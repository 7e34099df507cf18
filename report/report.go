// Package report persists the final reports produced by workflow
// runs. The Service wraps a Store with idempotent saving: re-saving a
// report that already exists for the session returns the stored id
// instead of inserting a duplicate.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finflow-ai/finflow/providers/observability"
)

// ErrNotFound is returned by stores when no report matches.
var ErrNotFound = errors.New("report: not found")

// dedupPrefixLen is the shared-prefix length used to treat two long
// report bodies as the same report.
const dedupPrefixLen = 100

// Metadata captures the research parameters of the run that produced
// a report.
type Metadata struct {
	Query      string   `json:"query" bson:"query"`
	TickerType string   `json:"ticker_type,omitempty" bson:"ticker_type,omitempty"`
	Tickers    []string `json:"tickers,omitempty" bson:"tickers,omitempty"`
}

// Report is one persisted research report.
type Report struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence boundary. Insert assigns and returns the
// report id; FindBySession returns the session's reports, newest
// last.
type Store interface {
	Insert(ctx context.Context, r *Report) (string, error)
	FindBySession(ctx context.Context, sessionID string) ([]Report, error)
}

// Service saves reports idempotently over a Store.
type Service struct {
	store Store
	obs   observability.Provider
	now   func() time.Time
}

// NewService wraps the store. obs may be nil.
func NewService(store Store, obs observability.Provider) *Service {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Service{store: store, obs: obs, now: time.Now}
}

// Save persists a report unless the session already holds the same
// one. Two reports are the same when their content is byte-identical,
// or when both are at least 100 characters long and share their first
// 100 characters. Returns the stored report's id either way.
func (s *Service) Save(ctx context.Context, sessionID, title, content string, meta Metadata) (string, error) {
	ctx, span := s.obs.StartSpan(ctx, observability.SpanReportSave,
		observability.String(observability.AttrSessionID, sessionID),
	)
	defer span.End()

	existing, err := s.store.FindBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return "", fmt.Errorf("report: find by session: %w", err)
	}
	for _, r := range existing {
		if sameContent(r.Content, content) {
			span.SetAttributes(
				observability.String(observability.AttrReportID, r.ID),
				observability.Bool(observability.AttrReportDedup, true),
			)
			s.obs.Info(ctx, "report deduplicated",
				observability.String(observability.AttrSessionID, sessionID),
				observability.String(observability.AttrReportID, r.ID),
			)
			return r.ID, nil
		}
	}

	id, err := s.store.Insert(ctx, &Report{
		SessionID: sessionID,
		Title:     title,
		Content:   content,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("report: insert: %w", err)
	}

	span.SetAttributes(observability.String(observability.AttrReportID, id))
	s.obs.Info(ctx, "report saved",
		observability.String(observability.AttrSessionID, sessionID),
		observability.String(observability.AttrReportID, id),
	)
	return id, nil
}

func sameContent(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < dedupPrefixLen || len(b) < dedupPrefixLen {
		return false
	}
	return a[:dedupPrefixLen] == b[:dedupPrefixLen]
}
