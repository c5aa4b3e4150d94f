package driven

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Judge scores a candidate answer against a reference answer.
type Judge interface {
	// Judge returns a verdict. A response that cannot be parsed yields a
	// verdict with Malformed set and a nil score, not an error. Errors are
	// reserved for provider failures.
	Judge(ctx context.Context, req JudgeRequest) (*Verdict, error)

	// ModelName returns the judge model id.
	ModelName() string
}

// JudgeRequest is one judging task.
type JudgeRequest struct {
	Question  string
	Reference string
	Candidate string
}

// Verdict is a judge's score and explanation.
type Verdict struct {
	// Score is normalised to [0, 1]. Nil when Malformed.
	Score *float64

	// Rationale is the judge's short explanation.
	Rationale string

	// Usage is the judge call's token and cost accounting.
	Usage domain.Usage

	// Malformed is set when the judge response could not be parsed.
	Malformed bool

	// Raw is the unparsed judge response, kept for manual review.
	Raw string
}
