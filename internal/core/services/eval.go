package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure EvalService implements the interface.
var _ driving.EvalService = (*EvalService)(nil)

// Default evaluation values.
const (
	DefaultEvalConcurrency = 4
	defaultUnitTimeout     = 3 * time.Minute
	poolExpiry             = 10 * time.Second
)

// Unit outcomes reported to metrics.
const (
	outcomeScored = "scored"
	outcomeFailed = "failed"
	outcomeReview = "needs_review"
)

// EvalService answers every evaluation case with every model on a bounded
// worker pool and scores the answers with a judge.
type EvalService struct {
	answers  driving.AnswerService
	judge    driven.Judge
	results  driven.ResultStore
	models   *domain.ModelRegistry
	settings domain.EvalSettings
	metrics  driven.Metrics
	now      func() time.Time
}

// NewEvalService creates an evaluation service. results may be nil, in
// which case runs are not persisted and cannot be resumed.
func NewEvalService(
	answers driving.AnswerService,
	judge driven.Judge,
	results driven.ResultStore,
	models *domain.ModelRegistry,
	settings domain.EvalSettings,
) *EvalService {
	if models == nil {
		models = domain.NewModelRegistry(domain.DefaultModels())
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = DefaultEvalConcurrency
	}
	if settings.UnitTimeout <= 0 {
		settings.UnitTimeout = defaultUnitTimeout
	}
	if settings.PassThreshold <= 0 {
		settings.PassThreshold = domain.DefaultPassThreshold
	}
	return &EvalService{
		answers:  answers,
		judge:    judge,
		results:  results,
		models:   models,
		settings: settings,
		now:      time.Now,
	}
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (s *EvalService) SetMetrics(m driven.Metrics) {
	s.metrics = m
}

type evalUnit struct {
	model string
	c     domain.EvalCase
}

// Run evaluates every (model, case) pair of req. A failing pair becomes an
// unscored result and never cancels its siblings. Cancelling ctx stops
// scheduling new pairs; the partial run is returned with the context error,
// and every pair it did not finish appears as an interrupted, unscored row
// that is not persisted.
func (s *EvalService) Run(ctx context.Context, req driving.EvalRequest) (*driving.EvalRun, error) {
	logger.Section("Evaluation")
	defer logger.Timed("eval run")()

	if s.answers == nil || s.judge == nil {
		return nil, domain.NewError(domain.KindProvider, "eval", domain.ErrLLMUnavailable)
	}
	if err := validateCases(req.Cases); err != nil {
		return nil, err
	}
	models, err := s.resolveModels(req.Models)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	existing, err := s.storedResults(ctx, runID)
	if err != nil {
		return nil, err
	}

	var units []evalUnit
	var results []domain.EvalResult
	for _, model := range models {
		for _, c := range req.Cases {
			if prev, ok := existing[model+"\x00"+c.ID]; ok {
				results = append(results, prev)
				continue
			}
			units = append(units, evalUnit{model: model, c: c})
		}
	}
	total := len(models) * len(req.Cases)
	skipped := total - len(units)
	logger.Info("Run %s: %d models x %d cases, %d to run, %d resumed", runID, len(models), len(req.Cases), len(units), skipped)

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.settings.Concurrency
	}

	pool, err := ants.NewPool(concurrency,
		ants.WithExpiryDuration(poolExpiry),
		ants.WithPanicHandler(func(p any) {
			logger.Error("Eval worker panic: %v", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create eval pool: %w", err)
	}
	defer pool.Release()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done = skipped
	)
	record := func(res domain.EvalResult) {
		if s.results != nil && !res.Interrupted() {
			if saveErr := s.results.SaveResult(context.WithoutCancel(ctx), &res); saveErr != nil {
				logger.Warn("Save result %s/%s: %v", res.Model, res.CaseID, saveErr)
			}
		}
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		done++
		if req.Progress != nil {
			req.Progress(driving.EvalProgress{Done: done, Total: total, Skipped: skipped, Last: res})
		}
	}

	scheduled := 0
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			record(s.runUnitSafe(ctx, runID, u))
		})
		if submitErr != nil {
			wg.Done()
			logger.Warn("Submit eval unit %s/%s: %v", u.model, u.c.ID, submitErr)
			record(s.failedResult(runID, u, domain.NewError(domain.KindInternal, "schedule", submitErr), 0))
		}
	}
	wg.Wait()

	for _, u := range units[scheduled:] {
		results = append(results, s.interruptedResult(runID, u))
	}

	SortResults(results)
	report := Aggregate(results, s.settings.PassThreshold)
	report.RunID = runID
	run := &driving.EvalRun{RunID: runID, Results: results, Report: report}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("eval run %s interrupted: %w", runID, err)
	}
	return run, nil
}

// runUnitSafe runs one pair and converts a panic into a failed result.
func (s *EvalService) runUnitSafe(ctx context.Context, runID string, u evalUnit) (res domain.EvalResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Eval unit %s/%s panicked: %v", u.model, u.c.ID, p)
			res = s.failedResult(runID, u, domain.NewError(domain.KindInternal, "eval unit", fmt.Errorf("panic: %v", p)), time.Since(start))
		}
	}()
	return s.runUnit(ctx, runID, u)
}

// runUnit answers one case with one model and judges the answer.
func (s *EvalService) runUnit(ctx context.Context, runID string, u evalUnit) domain.EvalResult {
	start := time.Now()
	unitCtx, cancel := context.WithTimeout(ctx, s.settings.UnitTimeout)
	defer cancel()

	topK := u.c.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	answer, err := s.answers.Ask(unitCtx, domain.Query{
		Question: u.c.Question,
		Tickers:  u.c.Tickers,
		Period:   u.c.Period,
		TopK:     topK,
		Model:    u.model,
	})
	if err != nil {
		if ctx.Err() != nil {
			return s.interruptedResult(runID, u)
		}
		logger.Debug("Unit %s/%s failed: %v", u.model, u.c.ID, err)
		return s.failedResult(runID, u, err, time.Since(start))
	}

	res := s.baseResult(runID, u)
	res.Answer = answer.Text
	res.Citations = answer.Citations
	res.Usage = answer.Usage

	verdict, err := s.judge.Judge(unitCtx, driven.JudgeRequest{
		Question:  u.c.Question,
		Reference: u.c.ExpectedAnswer,
		Candidate: answer.Text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return s.interruptedResult(runID, u)
		}
		res.ErrorKind = domain.KindOf(err)
		res.Error = err.Error()
		res.Duration = time.Since(start)
		s.observe(u.model, res.Duration, outcomeFailed)
		return res
	}

	res.Usage = res.Usage.Add(verdict.Usage)
	res.Duration = time.Since(start)
	if verdict.Malformed || verdict.Score == nil {
		res.NeedsReview = true
		res.ErrorKind = domain.KindJudge
		res.Error = "malformed judge output"
		res.Rationale = truncate(verdict.Raw, 500)
		s.observe(u.model, res.Duration, outcomeReview)
		return res
	}

	res.Score = verdict.Score
	res.Rationale = verdict.Rationale
	s.observe(u.model, res.Duration, outcomeScored)
	logger.Debug("Unit %s/%s scored %.2f", u.model, u.c.ID, *res.Score)
	return res
}

func (s *EvalService) baseResult(runID string, u evalUnit) domain.EvalResult {
	return domain.EvalResult{
		RunID:     runID,
		CaseID:    u.c.ID,
		Model:     u.model,
		Question:  u.c.Question,
		CreatedAt: s.now().UTC(),
	}
}

func (s *EvalService) failedResult(runID string, u evalUnit, err error, d time.Duration) domain.EvalResult {
	res := s.baseResult(runID, u)
	res.ErrorKind = domain.KindOf(err)
	res.Error = err.Error()
	res.Duration = d
	s.observe(u.model, d, outcomeFailed)
	return res
}

// interruptedResult is the placeholder row of a pair the cancelled run
// did not finish.
func (s *EvalService) interruptedResult(runID string, u evalUnit) domain.EvalResult {
	res := s.baseResult(runID, u)
	res.ErrorKind = domain.KindInterrupted
	res.Error = "not evaluated: run interrupted"
	return res
}

func (s *EvalService) observe(model string, d time.Duration, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveEvalUnit(model, d, outcome)
	}
}

// resolveModels maps aliases to provider ids, dropping duplicates.
func (s *EvalService) resolveModels(names []string) ([]string, error) {
	if len(names) == 0 {
		names = s.settings.Models
	}
	if len(names) == 0 {
		return nil, domain.NewValidationError("at least one model is required")
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		id, err := s.models.Resolve(n)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// storedResults loads prior results of runID keyed by (model, case).
func (s *EvalService) storedResults(ctx context.Context, runID string) (map[string]domain.EvalResult, error) {
	out := make(map[string]domain.EvalResult)
	if s.results == nil {
		return out, nil
	}
	prev, err := s.results.ListResults(ctx, runID)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "load results", err)
	}
	for _, r := range prev {
		if r.Interrupted() {
			continue
		}
		out[r.Key()] = r
	}
	return out, nil
}

// Report recomputes the report of a stored run.
func (s *EvalService) Report(ctx context.Context, runID string) (*domain.Report, error) {
	if s.results == nil {
		return nil, fmt.Errorf("report %s: no result store configured", runID)
	}
	results, err := s.results.ListResults(ctx, runID)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "load results", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	report := Aggregate(results, s.settings.PassThreshold)
	report.RunID = runID
	return &report, nil
}

// Runs lists stored run ids, most recent first.
func (s *EvalService) Runs(ctx context.Context) ([]string, error) {
	if s.results == nil {
		return nil, nil
	}
	runs, err := s.results.ListRuns(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "list runs", err)
	}
	return runs, nil
}

// validateCases checks every case and rejects duplicate ids.
func validateCases(cases []domain.EvalCase) error {
	if len(cases) == 0 {
		return domain.NewValidationError("at least one eval case is required")
	}
	seen := make(map[string]bool, len(cases))
	var errs []error
	for i := range cases {
		if err := cases[i].Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[cases[i].ID] {
			errs = append(errs, domain.NewValidationError("duplicate eval case id %q", cases[i].ID))
		}
		seen[cases[i].ID] = true
	}
	return errors.Join(errs...)
}

// SortResults orders results by model, then case id.
func SortResults(results []domain.EvalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Model != results[j].Model {
			return results[i].Model < results[j].Model
		}
		return results[i].CaseID < results[j].CaseID
	})
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
