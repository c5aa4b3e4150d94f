package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure ResultStore implements the interface.
var _ driven.ResultStore = (*ResultStore)(nil)

// ResultStore is an in-memory implementation of driven.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	runs    map[string]map[string]domain.EvalResult
	updated map[string]time.Time
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		runs:    make(map[string]map[string]domain.EvalResult),
		updated: make(map[string]time.Time),
	}
}

// SaveResult stores a result keyed by run, model and case.
func (s *ResultStore) SaveResult(_ context.Context, result *domain.EvalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[result.RunID]
	if !ok {
		run = make(map[string]domain.EvalResult)
		s.runs[result.RunID] = run
	}
	r := *result
	r.Citations = slices.Clone(result.Citations)
	run[r.Key()] = r

	if r.CreatedAt.After(s.updated[r.RunID]) {
		s.updated[r.RunID] = r.CreatedAt
	}
	return nil
}

// ListResults returns the results of a run ordered by model, then case.
func (s *ResultStore) ListResults(_ context.Context, runID string) ([]domain.EvalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := s.runs[runID]
	out := make([]domain.EvalResult, 0, len(run))
	for _, r := range run {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].CaseID < out[j].CaseID
	})
	return out, nil
}

// ListRuns returns run ids ordered by their latest result, most recent first.
func (s *ResultStore) ListRuns(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.updated[ids[i]], s.updated[ids[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] > ids[j]
	})
	return ids, nil
}
