package driving

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// EvalService runs evaluation sets against models and reports on them.
type EvalService interface {
	// Run answers and judges every (model, case) pair of req. Per-pair
	// failures are recorded as unscored results, never returned as errors.
	Run(ctx context.Context, req EvalRequest) (*EvalRun, error)

	// Report recomputes the report of a stored run.
	Report(ctx context.Context, runID string) (*domain.Report, error)

	// Runs lists stored run ids, most recent first.
	Runs(ctx context.Context) ([]string, error)
}

// EvalRequest configures an evaluation run.
type EvalRequest struct {
	// RunID names the run. Empty generates a new id. Reusing an id resumes
	// the run, skipping pairs that already have a stored result.
	RunID string

	// Cases are the evaluation cases.
	Cases []domain.EvalCase

	// Models are aliases or ids. Empty uses the configured defaults.
	Models []string

	// Concurrency overrides the configured worker count when positive.
	Concurrency int

	// Progress, when set, is called after every finished pair.
	Progress func(EvalProgress)
}

// EvalProgress reports run progress.
type EvalProgress struct {
	Done    int
	Total   int
	Skipped int
	Last    domain.EvalResult
}

// EvalRun is the outcome of a run.
type EvalRun struct {
	RunID   string
	Results []domain.EvalResult
	Report  domain.Report
}
