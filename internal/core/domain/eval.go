package domain

import (
	"strings"
	"time"
)

// DefaultPassThreshold is the judge score at or above which a result passes.
const DefaultPassThreshold = 0.5

// EvalCase is one question/reference pair of an evaluation set.
type EvalCase struct {
	// ID identifies the case within a run. Loaders assign one if absent.
	ID string `json:"id" yaml:"id"`

	// Question is asked verbatim.
	Question string `json:"question" yaml:"question"`

	// ExpectedAnswer is the reference the judge compares against.
	ExpectedAnswer string `json:"expected_answer" yaml:"expected_answer"`

	// Tickers and Period scope retrieval for this case.
	Tickers []string `json:"tickers,omitempty" yaml:"tickers"`
	Period  string   `json:"period,omitempty" yaml:"period"`

	// TopK overrides the harness default when positive.
	TopK int `json:"top_k,omitempty" yaml:"top_k"`
}

// Validate checks an evaluation case before it is scheduled.
func (c *EvalCase) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return NewValidationError("eval case id is required")
	}
	if strings.TrimSpace(c.Question) == "" {
		return NewValidationError("eval case %s: question is required", c.ID)
	}
	if strings.TrimSpace(c.ExpectedAnswer) == "" {
		return NewValidationError("eval case %s: expected answer is required", c.ID)
	}
	for _, t := range c.Tickers {
		if !ValidTicker(t) {
			return NewValidationError("eval case %s: invalid ticker %q", c.ID, t)
		}
	}
	return nil
}

// EvalResult is the outcome of one (model, case) pair.
// A nil Score means the pair was not scored: the generation failed or the
// judge response could not be parsed.
type EvalResult struct {
	RunID     string     `json:"run_id"`
	CaseID    string     `json:"case_id"`
	Model     string     `json:"model"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	// Score is the judge score in [0, 1], or nil.
	Score *float64 `json:"score"`

	// Rationale is the judge's short explanation.
	Rationale string `json:"rationale,omitempty"`

	// NeedsReview flags malformed judge output for manual review.
	NeedsReview bool `json:"needs_review,omitempty"`

	// Usage covers generation and judging.
	Usage Usage `json:"usage"`

	// ErrorKind and Error describe a failed pair.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`

	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Failed reports whether the pair failed before it could be judged.
func (r *EvalResult) Failed() bool {
	return r.Error != "" && !r.NeedsReview && !r.Interrupted()
}

// Interrupted reports whether the pair was cut short by cancelling its run.
func (r *EvalResult) Interrupted() bool {
	return r.ErrorKind == KindInterrupted
}

// Key returns the (model, case) identity of the result.
func (r *EvalResult) Key() string {
	return r.Model + "\x00" + r.CaseID
}

// ModelSummary aggregates all results of one model.
type ModelSummary struct {
	Model  string `json:"model"`
	Cases  int    `json:"cases"`
	Scored int    `json:"scored"`
	Failed int    `json:"failed"`

	// Review counts results whose judge output was malformed.
	Review int `json:"needs_review"`

	// MeanScore is the mean over non-null scores, nil when none.
	MeanScore *float64 `json:"mean_score"`

	// PassRate is the fraction of non-null scores at or above the threshold.
	PassRate *float64 `json:"pass_rate"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`

	// FailedCases lists case ids that produced no score.
	FailedCases []string `json:"failed_cases,omitempty"`

	// Interrupted counts pairs a cancelled run did not finish. They are
	// neither failures nor scores.
	Interrupted      int      `json:"interrupted"`
	InterruptedCases []string `json:"interrupted_cases,omitempty"`
}

// CaseSummary is the distribution of scores for one case across models.
type CaseSummary struct {
	CaseID   string `json:"case_id"`
	Question string `json:"question"`

	// Scores maps model to score; a nil entry means unscored.
	Scores map[string]*float64 `json:"scores"`

	Mean   *float64 `json:"mean"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Spread *float64 `json:"spread"`
}

// Report is the derived view of a result set. It is recomputed from
// results on demand and never updated in place.
type Report struct {
	RunID     string         `json:"run_id"`
	Threshold float64        `json:"threshold"`
	Models    []ModelSummary `json:"models"`
	Cases     []CaseSummary  `json:"cases"`
}

// Float returns a pointer to v, for nullable scores.
func Float(v float64) *float64 {
	return &v
}
