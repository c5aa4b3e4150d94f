package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure LLMJudge implements the interfaces.
var (
	_ driven.Judge            = (*LLMJudge)(nil)
	_ driven.PromptStoreAware = (*LLMJudge)(nil)
)

const (
	judgeMaxTokens = 512
	judgeTimeout   = 90 * time.Second
)

// LLMJudge scores candidate answers with a chat model and a rubric prompt.
type LLMJudge struct {
	llm         driven.LLMService
	model       string
	pricer      *Pricer
	retry       RetryPolicy
	timeout     time.Duration
	promptStore driven.PromptStore
}

// NewLLMJudge creates a judge that calls model through llm.
// An empty model uses domain.DefaultJudgeModel.
func NewLLMJudge(llm driven.LLMService, model string, pricer *Pricer) *LLMJudge {
	if model == "" {
		model = domain.DefaultJudgeModel
	}
	if pricer == nil {
		pricer = NewPricer(nil, nil)
	}
	return &LLMJudge{
		llm:     llm,
		model:   model,
		pricer:  pricer,
		retry:   DefaultRetryPolicy(),
		timeout: judgeTimeout,
	}
}

// SetPromptStore sets the prompt store for loading the rubric.
func (j *LLMJudge) SetPromptStore(store driven.PromptStore) {
	j.promptStore = store
}

// SetRetryPolicy overrides the judge retry policy.
func (j *LLMJudge) SetRetryPolicy(p RetryPolicy) {
	j.retry = p
}

// ModelName returns the judge model id.
func (j *LLMJudge) ModelName() string {
	return j.model
}

// Judge scores req.Candidate against req.Reference. Unparseable judge
// output is returned as a malformed verdict, never as an error.
func (j *LLMJudge) Judge(ctx context.Context, req driven.JudgeRequest) (*driven.Verdict, error) {
	if j.llm == nil {
		return nil, domain.NewError(domain.KindProvider, "judge", domain.ErrLLMUnavailable)
	}

	messages := []driven.ChatMessage{
		{Role: driven.RoleUser, Content: renderRubric(j.rubric(), req)},
	}
	completionReq := driven.CompletionRequest{
		Model:       j.model,
		Messages:    messages,
		MaxTokens:   judgeMaxTokens,
		Temperature: 0,
	}

	var completion *driven.Completion
	attempts, err := withRetry(ctx, j.retry, "judge", func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, j.timeout)
		defer cancel()
		c, callErr := j.llm.Complete(attemptCtx, completionReq)
		if callErr != nil {
			return callErr
		}
		completion = c
		return nil
	})
	if err != nil {
		return nil, domain.NewError(domain.KindProvider, "judge", fmt.Errorf("%d attempts: %w", attempts, err))
	}

	verdict := &driven.Verdict{
		Raw:   completion.Text,
		Usage: j.pricer.Usage(j.model, completion.Usage, messages, completion.Text),
	}
	score, rationale, parseErr := ParseVerdict(completion.Text)
	if parseErr != nil {
		logger.Warn("Judge output malformed: %v", parseErr)
		verdict.Malformed = true
		return verdict, nil
	}
	verdict.Score = domain.Float(score)
	verdict.Rationale = rationale
	return verdict, nil
}

// rubric returns the rubric template, falling back to the built-in one when
// the configured template is missing any of the named placeholders.
func (j *LLMJudge) rubric() string {
	fallback := driven.DefaultPrompts()[driven.PromptJudgeRubric]
	if j.promptStore == nil {
		return fallback
	}
	prompt, err := j.promptStore.Load(driven.PromptJudgeRubric)
	if err != nil {
		return fallback
	}
	for _, p := range []string{driven.PlaceholderQuestion, driven.PlaceholderReference, driven.PlaceholderCandidate} {
		if !strings.Contains(prompt, p) {
			logger.Warn("Judge rubric lacks %s, using the built-in rubric", p)
			return fallback
		}
	}
	return prompt
}

// renderRubric substitutes req into tmpl in a single pass, so placeholder
// text inside the question or answers is not expanded again.
func renderRubric(tmpl string, req driven.JudgeRequest) string {
	return strings.NewReplacer(
		driven.PlaceholderQuestion, req.Question,
		driven.PlaceholderReference, req.Reference,
		driven.PlaceholderCandidate, req.Candidate,
	).Replace(tmpl)
}

type judgeOutput struct {
	Score     json.RawMessage `json:"score"`
	Rationale string          `json:"rationale"`
}

// ParseVerdict extracts a normalised score and rationale from judge output.
// The JSON object may be wrapped in prose or a fenced code block. Scores on
// a 0-10 or 0-100 scale are normalised to [0, 1].
func ParseVerdict(raw string) (float64, string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return 0, "", fmt.Errorf("no JSON object in judge output: %w", domain.ErrJudge)
	}

	var out judgeOutput
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return 0, "", fmt.Errorf("decode judge output: %w: %w", domain.ErrJudge, err)
	}
	if len(out.Score) == 0 || string(out.Score) == "null" {
		return 0, "", fmt.Errorf("judge output has no score: %w", domain.ErrJudge)
	}

	text := strings.Trim(string(out.Score), `"`)
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, "", fmt.Errorf("judge score %s is not a number: %w", out.Score, domain.ErrJudge)
	}
	normalised, ok := normaliseScore(score)
	if !ok {
		return 0, "", fmt.Errorf("judge score %v out of range: %w", score, domain.ErrJudge)
	}
	return normalised, strings.TrimSpace(out.Rationale), nil
}

func normaliseScore(s float64) (float64, bool) {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0) || s < 0:
		return 0, false
	case s <= 1:
		return s, true
	case s <= 10:
		return s / 10, true
	case s <= 100:
		return s / 100, true
	default:
		return 0, false
	}
}
