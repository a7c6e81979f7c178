package signallog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "signals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndQueryRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	started := time.Now().Add(-3 * time.Second)
	id, err := s.RecordRun(ctx, Run{
		Kind:         "buy",
		Provider:     "file",
		StrategyMode: "sma_ema_hybrid",
		Universe:     25,
		Candidates:   2,
		ReportPath:   "reports/2025-06-02.buy.md",
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	err = s.RecordDecisions(ctx, id, []Decision{
		{Ticker: "005930", Name: "삼성전자", Accepted: true, Score: 6, Price: 72500, EvalDate: "20250602"},
		{Ticker: "000660", Accepted: false, Reasons: []string{"EMA cross condition not satisfied"}},
	})
	require.NoError(t, err)

	runs, err := s.RecentRuns(ctx, "buy", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "sma_ema_hybrid", runs[0].StrategyMode)
	assert.Equal(t, 25, runs[0].Universe)
	assert.Equal(t, 2*time.Second, runs[0].FinishedAt.Sub(runs[0].StartedAt))

	decisions, err := s.DecisionsForRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "005930", decisions[0].Ticker) // accepted sorts first
	assert.True(t, decisions[0].Accepted)
	assert.Empty(t, decisions[0].Reasons)
	assert.Equal(t, []string{"EMA cross condition not satisfied"}, decisions[1].Reasons)
}

func TestRecentRunsFiltersByKind(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, Run{Kind: "buy", Provider: "file"})
	require.NoError(t, err)
	sellID, err := s.RecordRun(ctx, Run{Kind: "sell", Provider: "file"})
	require.NoError(t, err)

	sells, err := s.RecentRuns(ctx, "sell", 10)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, sellID, sells[0].ID)

	all, err := s.RecentRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecordDecisionsValidation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	assert.Error(t, s.RecordDecisions(ctx, "", []Decision{{Ticker: "005930"}}))
	assert.NoError(t, s.RecordDecisions(ctx, "run-1", nil))
}

func TestOpenRejectsBlankPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
