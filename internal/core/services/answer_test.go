package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func (m *mockPromptStore) Reload() {}

func newTestAnswerService(index *mockIndexStore, llm driven.LLMService) *AnswerService {
	retriever := newTestRetriever(&mockEmbeddingService{}, index)
	svc := NewAnswerService(retriever, index, llm, nil, nil, nil, domain.GenerationSettings{
		Temperature: 0.1,
		MaxTokens:   512,
		Timeout:     time.Second,
	})
	svc.SetRetryPolicy(fastRetry())
	return svc
}

func TestAnswerService_Ask(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{
		text:  "AWS segment sales increased 20% year-over-year to $33.0 billion. Management expects strong demand next year.",
		usage: driven.TokenUsage{InputTokens: 1000, OutputTokens: 100},
	}
	metrics := &mockMetrics{}
	svc := newTestAnswerService(index, llm)
	svc.SetMetrics(metrics)

	answer, err := svc.Ask(context.Background(), domain.Query{
		Question: "How did AWS grow?",
		Tickers:  []string{"AMZN"},
		TopK:     8,
		Model:    "gpt-5.1",
	})

	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-5.1", answer.Model)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "aws", answer.Citations[0].ChunkID)
	assert.Equal(t, 4, answer.Citations[0].Page)
	assert.Equal(t, "12-15", answer.Citations[0].Lines())
	require.Len(t, answer.Gaps, 1)
	assert.Equal(t, 1, answer.Gaps[0].SentenceIndex)

	assert.Equal(t, 1000, answer.Usage.InputTokens)
	assert.Equal(t, 100, answer.Usage.OutputTokens)
	assert.InDelta(t, 0.00225, answer.Usage.Cost, 1e-9)
	assert.False(t, answer.Usage.Estimated)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "openai/gpt-5.1", req.Model)
	assert.Equal(t, 512, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, driven.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "[Chunk 1 | AMZN |  | Q3-2025 | Page 4, lines 12-15]")
	assert.Equal(t, "How did AWS grow?", req.Messages[1].Content)

	assert.Equal(t, 1, metrics.generations)
	assert.Equal(t, 1, metrics.cited)
	assert.Equal(t, 1, metrics.gaps)
}

func TestAnswerService_Ask_NoContext(t *testing.T) {
	index := newMockIndexStore()
	index.avail = map[string][]string{"AMZN": {"Q3-2025"}}
	llm := &mockLLMService{text: "should not be called"}
	svc := newTestAnswerService(index, llm)

	answer, err := svc.Ask(context.Background(), domain.Query{
		Question: "What was Tesla revenue?",
		Tickers:  []string{"TSLA"},
		TopK:     8,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, llm.callCount())
	assert.True(t, strings.HasPrefix(answer.Text, "I don't have any data for TSLA."))
	assert.Contains(t, answer.Text, "**AMZN**: Q3-2025")
	assert.Equal(t, index.avail, answer.Availability)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, answer.Usage.Cost)
}

func TestAnswerService_Ask_AllBelowSimilarity(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("weak", 0.05)}
	llm := &mockLLMService{text: "unused"}
	svc := newTestAnswerService(index, llm)

	answer, err := svc.Ask(context.Background(), domain.Query{Question: "revenue?", TopK: 8})

	require.NoError(t, err)
	assert.Equal(t, 0, llm.callCount())
	assert.Equal(t, noDataMessage, answer.Text)
}

func TestAnswerService_Ask_RetriesThenSucceeds(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{
		errs: []error{domain.ErrRateLimited, domain.ErrRateLimited},
		text: "AWS segment sales increased 20%.",
	}
	svc := newTestAnswerService(index, llm)

	answer, err := svc.Ask(context.Background(), domain.Query{Question: "AWS?", TopK: 8})

	require.NoError(t, err)
	assert.Equal(t, 3, llm.callCount())
	assert.NotEmpty(t, answer.Text)
}

func TestAnswerService_Ask_GenerationError(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{fn: func(_ driven.CompletionRequest) (*driven.Completion, error) {
		return nil, domain.ErrRateLimited
	}}
	metrics := &mockMetrics{}
	svc := newTestAnswerService(index, llm)
	svc.SetMetrics(metrics)

	answer, err := svc.Ask(context.Background(), domain.Query{Question: "AWS?", TopK: 8})

	require.Error(t, err)
	assert.Nil(t, answer)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.KindGeneration, domain.KindOf(err))
	assert.Equal(t, 3, llm.callCount())
	assert.Equal(t, 1, metrics.genErrors)
}

func TestAnswerService_Ask_TerminalErrorNotRetried(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{fn: func(_ driven.CompletionRequest) (*driven.Completion, error) {
		return nil, errors.New("invalid api key")
	}}
	svc := newTestAnswerService(index, llm)

	_, err := svc.Ask(context.Background(), domain.Query{Question: "AWS?", TopK: 8})

	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Equal(t, 1, llm.callCount())
}

func TestAnswerService_Ask_EmptyCompletionRetried(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{text: "   "}
	svc := newTestAnswerService(index, llm)

	_, err := svc.Ask(context.Background(), domain.Query{Question: "AWS?", TopK: 8})

	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, 3, llm.callCount())
}

func TestAnswerService_Ask_EstimatesMissingUsage(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{text: "AWS segment sales increased 20%."}
	svc := newTestAnswerService(index, llm)

	answer, err := svc.Ask(context.Background(), domain.Query{Question: "AWS?", TopK: 8, Model: "claude-sonnet-4.5"})

	require.NoError(t, err)
	assert.True(t, answer.Usage.Estimated)
	assert.Positive(t, answer.Usage.InputTokens)
	assert.Positive(t, answer.Usage.OutputTokens)
	assert.Positive(t, answer.Usage.Cost)
}

func TestAnswerService_Ask_UnknownModel(t *testing.T) {
	index := newMockIndexStore()
	llm := &mockLLMService{text: "x"}
	svc := newTestAnswerService(index, llm)

	_, err := svc.Ask(context.Background(), domain.Query{Question: "q", TopK: 8, Model: "gpt-99"})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, llm.callCount())
}

func TestAnswerService_Ask_NoLLM(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	svc := newTestAnswerService(index, nil)

	_, err := svc.Ask(context.Background(), domain.Query{Question: "q", TopK: 8})

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAnswerService_Ask_CustomPrompt(t *testing.T) {
	index := newMockIndexStore()
	index.hits = []domain.ScoredChunk{hit("aws", 0.9)}
	llm := &mockLLMService{text: "AWS grew."}
	svc := newTestAnswerService(index, llm)
	svc.SetPromptStore(&mockPromptStore{prompts: map[string]string{
		driven.PromptAnswerSystem: "Answer tersely.",
	}})

	_, err := svc.Ask(context.Background(), domain.Query{Question: "q", TopK: 8})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(llm.requests[0].Messages[0].Content, "Answer tersely.\n\nContext:\n[Chunk 1"))
}

func TestFormatContext(t *testing.T) {
	a := scored("a", "line one\nline two", 2, 3, 4)
	a.FilingType = "10-Q"
	b := scored("b", "single", 5, 9, 9)

	got := FormatContext([]domain.ScoredChunk{a, b})

	want := "[Chunk 1 | AMZN | 10-Q | Q3-2025 | Page 2, lines 3-4]\nline one\nline two\n\n" +
		"[Chunk 2 | AMZN |  | Q3-2025 | Page 5, lines 9]\nsingle"
	assert.Equal(t, want, got)
}
