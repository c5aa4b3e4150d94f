package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func score(v float64) *float64 { return &v }

func TestResultStore_SaveReplacesByKey(t *testing.T) {
	s := NewResultStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveResult(ctx, &domain.EvalResult{RunID: "r1", Model: "gpt-5.1", CaseID: "q1", Error: "timeout", ErrorKind: domain.KindGeneration, CreatedAt: now}))
	require.NoError(t, s.SaveResult(ctx, &domain.EvalResult{RunID: "r1", Model: "gpt-5.1", CaseID: "q1", Score: score(0.8), CreatedAt: now.Add(time.Second)}))

	results, err := s.ListResults(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, *results[0].Score, 1e-9)
	assert.False(t, results[0].Failed())
}

func TestResultStore_ListOrdersByModelThenCase(t *testing.T) {
	s := NewResultStore()
	ctx := context.Background()

	for _, r := range []domain.EvalResult{
		{RunID: "r", Model: "b", CaseID: "q1"},
		{RunID: "r", Model: "a", CaseID: "q2"},
		{RunID: "r", Model: "a", CaseID: "q1"},
	} {
		r := r
		require.NoError(t, s.SaveResult(ctx, &r))
	}

	results, err := s.ListResults(ctx, "r")
	require.NoError(t, err)
	var keys []string
	for _, r := range results {
		keys = append(keys, r.Model+"/"+r.CaseID)
	}
	assert.Equal(t, []string{"a/q1", "a/q2", "b/q1"}, keys)

	empty, err := s.ListResults(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResultStore_ListRunsMostRecentFirst(t *testing.T) {
	s := NewResultStore()
	ctx := context.Background()
	base := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveResult(ctx, &domain.EvalResult{RunID: "old", Model: "m", CaseID: "q", CreatedAt: base}))
	require.NoError(t, s.SaveResult(ctx, &domain.EvalResult{RunID: "new", Model: "m", CaseID: "q", CreatedAt: base.Add(time.Hour)}))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, runs)

	require.NoError(t, s.SaveResult(ctx, &domain.EvalResult{RunID: "old", Model: "m", CaseID: "q2", CreatedAt: base.Add(2 * time.Hour)}))
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, runs, "resumed runs move to the front")
}
