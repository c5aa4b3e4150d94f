package driven

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// ResultStore persists evaluation results so interrupted runs can resume
// and reports can be recomputed later.
type ResultStore interface {
	// SaveResult stores a result, replacing any previous result for the
	// same run, model and case.
	SaveResult(ctx context.Context, result *domain.EvalResult) error

	// ListResults returns all results of a run ordered by model, then case.
	ListResults(ctx context.Context, runID string) ([]domain.EvalResult, error)

	// ListRuns returns known run ids, most recent first.
	ListRuns(ctx context.Context) ([]string, error)
}
