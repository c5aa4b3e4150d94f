package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

// Default generation values.
const (
	defaultMaxTokens         = 1024
	defaultGenerationTimeout = 60 * time.Second
)

// AnswerService answers questions from retrieved filing context and
// attributes each answer sentence to the chunks that support it.
type AnswerService struct {
	retriever   driving.RetrievalService
	index       driven.IndexStore
	llm         driven.LLMService
	models      *domain.ModelRegistry
	pricer      *Pricer
	resolver    *CitationResolver
	settings    domain.GenerationSettings
	retry       RetryPolicy
	metrics     driven.Metrics
	promptStore driven.PromptStore
}

// NewAnswerService creates an answer service. index is only used to list
// availability when retrieval finds nothing and may be nil.
func NewAnswerService(
	retriever driving.RetrievalService,
	index driven.IndexStore,
	llm driven.LLMService,
	models *domain.ModelRegistry,
	pricer *Pricer,
	resolver *CitationResolver,
	settings domain.GenerationSettings,
) *AnswerService {
	if models == nil {
		models = domain.NewModelRegistry(domain.DefaultModels())
	}
	if pricer == nil {
		pricer = NewPricer(models, nil)
	}
	if resolver == nil {
		resolver, _ = NewCitationResolver(domain.CitationSettings{Threshold: DefaultCitationThreshold})
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultMaxTokens
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultGenerationTimeout
	}
	return &AnswerService{
		retriever: retriever,
		index:     index,
		llm:       llm,
		models:    models,
		pricer:    pricer,
		resolver:  resolver,
		settings:  settings,
		retry:     RetryPolicyFrom(settings),
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the service uses the built-in system prompt.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// SetRetryPolicy overrides the generation retry policy.
func (s *AnswerService) SetRetryPolicy(p RetryPolicy) {
	s.retry = p
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (s *AnswerService) SetMetrics(m driven.Metrics) {
	s.metrics = m
}

// Ask retrieves context for q, generates a grounded answer and resolves
// citations. When retrieval finds nothing the answer explains what is
// indexed instead, and no provider is called.
func (s *AnswerService) Ask(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	logger.Section("Answer")
	defer logger.Timed("ask")()

	if s.retriever == nil {
		return nil, domain.NewError(domain.KindIndex, "retrieve", domain.ErrIndexUnavailable)
	}

	modelID := ""
	if q.Model != "" {
		resolved, err := s.models.Resolve(q.Model)
		if err != nil {
			return nil, err
		}
		modelID = resolved
	} else if s.llm != nil {
		modelID = s.llm.ModelName()
	}

	retrieval, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Question: q.Question,
		Filter:   retrieval.Filter,
		Context:  retrieval.Chunks,
	}

	if len(retrieval.Chunks) == 0 {
		logger.Info("No context found, answering with availability")
		avail := s.availability(ctx)
		answer.Text = AvailabilityMessage(avail, retrieval.Query.Tickers, retrieval.Filter.Period)
		answer.Availability = avail
		return answer, nil
	}

	if s.llm == nil {
		return nil, domain.NewError(domain.KindProvider, "generate answer", domain.ErrLLMUnavailable)
	}

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: s.systemPrompt(retrieval.Chunks)},
		{Role: driven.RoleUser, Content: q.Question},
	}
	req := driven.CompletionRequest{
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	}
	logger.Debug("Generating with model=%s chunks=%d", modelID, len(retrieval.Chunks))

	start := time.Now()
	completion, attempts, err := s.complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		s.observeGeneration(modelID, elapsed, domain.Usage{}, err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate answer: %w", ctx.Err())
		}
		logger.Warn("Generation failed after %d attempts: %v", attempts, err)
		return nil, domain.NewError(domain.KindGeneration, "generate answer",
			fmt.Errorf("%d attempts: %w", attempts, err))
	}

	answer.Text = strings.TrimSpace(completion.Text)
	answer.Model = modelID
	if completion.Model != "" {
		answer.Model = completion.Model
	}
	answer.Usage = s.pricer.Usage(modelID, completion.Usage, messages, completion.Text)
	s.observeGeneration(modelID, elapsed, answer.Usage, nil)
	logger.Debug("Usage: in=%d out=%d cost=$%.6f estimated=%t",
		answer.Usage.InputTokens, answer.Usage.OutputTokens, answer.Usage.Cost, answer.Usage.Estimated)

	answer.Citations, answer.Gaps = s.resolver.Resolve(answer.Text, retrieval.Chunks)
	if answer.Citations == nil {
		answer.Citations = []domain.Citation{}
	}
	if s.metrics != nil {
		s.metrics.ObserveCitations(len(answer.Citations), len(answer.Gaps))
	}
	logger.Info("Answered with %d citations, %d uncited sentences", len(answer.Citations), len(answer.Gaps))

	return answer, nil
}

// complete runs one completion under the retry policy. Each attempt gets
// its own timeout so a hung attempt is retried rather than ending the turn.
func (s *AnswerService) complete(ctx context.Context, req driven.CompletionRequest) (*driven.Completion, int, error) {
	var completion *driven.Completion
	attempts, err := withRetry(ctx, s.retry, "generate answer", func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()

		c, callErr := s.llm.Complete(attemptCtx, req)
		if callErr != nil {
			return callErr
		}
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("empty completion: %w", domain.ErrMalformedResponse)
		}
		completion = c
		return nil
	})
	return completion, attempts, err
}

func (s *AnswerService) systemPrompt(chunks []domain.ScoredChunk) string {
	return s.loadPrompt(driven.PromptAnswerSystem) + "\n\nContext:\n" + FormatContext(chunks)
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (s *AnswerService) loadPrompt(name string) string {
	fallback := driven.DefaultPrompts()[name]
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

func (s *AnswerService) availability(ctx context.Context) map[string][]string {
	if s.index == nil {
		return nil
	}
	avail, err := s.index.Availability(ctx)
	if err != nil {
		logger.Warn("Availability lookup failed: %v", err)
		return nil
	}
	return avail
}

func (s *AnswerService) observeGeneration(model string, d time.Duration, u domain.Usage, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveGeneration(model, d, u.InputTokens, u.OutputTokens, u.Cost, err)
}

// FormatContext renders ranked chunks as numbered context blocks, each
// headed with its ticker, filing, period, page and line range.
func FormatContext(chunks []domain.ScoredChunk) string {
	var b strings.Builder
	for i := range chunks {
		c := &chunks[i].Chunk
		fmt.Fprintf(&b, "[Chunk %d | %s | %s | %s | Page %d, lines %s]\n%s\n\n",
			i+1, strings.ToUpper(c.Ticker), c.FilingType, c.Period, c.Page, c.LineRange(), c.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
