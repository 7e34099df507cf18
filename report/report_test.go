package report_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow-ai/finflow/report"
	"github.com/finflow-ai/finflow/report/inmem"
)

func newService(t *testing.T) (*report.Service, *inmem.Store) {
	t.Helper()
	store := inmem.New()
	return report.NewService(store, nil), store
}

func TestSaveInsertsReport(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	id, err := svc.Save(ctx, "s1", "AAPL Review", "# AAPL\n\nUp 12%.", report.Metadata{
		Query:      "review AAPL",
		TickerType: "stock",
		Tickers:    []string{"AAPL"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := store.FindBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)
	assert.Equal(t, "AAPL Review", stored[0].Title)
	assert.Equal(t, []string{"AAPL"}, stored[0].Metadata.Tickers)
	assert.False(t, stored[0].CreatedAt.IsZero())
}

func TestSaveIdenticalContentDeduplicates(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	content := "# Report\n\nShort but identical."

	first, err := svc.Save(ctx, "s1", "Report", content, report.Metadata{})
	require.NoError(t, err)

	second, err := svc.Save(ctx, "s1", "Report", content, report.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := store.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSaveSharedPrefixDeduplicates(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	prefix := strings.Repeat("x", 100)
	first, err := svc.Save(ctx, "s1", "Report", prefix+" tail one", report.Metadata{})
	require.NoError(t, err)

	second, err := svc.Save(ctx, "s1", "Report", prefix+" a different tail", report.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "100-char shared prefix must deduplicate")

	stored, err := store.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSaveShortContentNeverPrefixMatches(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	// Under 100 characters only byte-identical content deduplicates.
	first, err := svc.Save(ctx, "s1", "Report", "short report A", report.Metadata{})
	require.NoError(t, err)

	second, err := svc.Save(ctx, "s1", "Report", "short report B", report.Metadata{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	stored, err := store.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSaveScopedToSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	content := strings.Repeat("same long content ", 10)

	first, err := svc.Save(ctx, "s1", "Report", content, report.Metadata{})
	require.NoError(t, err)

	second, err := svc.Save(ctx, "s2", "Report", content, report.Metadata{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "dedupe must not cross sessions")
}
