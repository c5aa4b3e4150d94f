package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// fixedCounter implements driven.TokenCounter with a constant count.
type fixedCounter struct{ n int }

func (c fixedCounter) Count(_, _ string) int { return c.n }

func TestPricer_Cost(t *testing.T) {
	p := NewPricer(nil, nil)

	assert.InDelta(t, 0.00225, p.Cost("openai/gpt-5.1", 1000, 100), 1e-12)
	assert.InDelta(t, 30.0, p.Cost("anthropic/claude-opus-4.5", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.00056, p.Cost("gpt-4.1-mini", 1000, 100), 1e-12)
	assert.Equal(t, 0.0, p.Cost("unknown-model", 1000, 1000))
	assert.Equal(t, 0.0, p.Cost("openai/gpt-5.1", 0, 0))
}

func TestPricer_UsageReported(t *testing.T) {
	p := NewPricer(nil, fixedCounter{n: 999})

	u := p.Usage("openai/gpt-5.1", driven.TokenUsage{InputTokens: 1000, OutputTokens: 100}, nil, "ignored")
	assert.Equal(t, 1000, u.InputTokens)
	assert.Equal(t, 100, u.OutputTokens)
	assert.False(t, u.Estimated)
	assert.InDelta(t, 0.00225, u.Cost, 1e-12)
}

func TestPricer_UsageEstimated(t *testing.T) {
	prompt := []driven.ChatMessage{
		{Role: "system", Content: "context"},
		{Role: "user", Content: "question"},
	}

	p := NewPricer(nil, fixedCounter{n: 10})
	u := p.Usage("openai/gpt-5.1", driven.TokenUsage{}, prompt, "answer")
	assert.True(t, u.Estimated)
	assert.Equal(t, 20, u.InputTokens)
	assert.Equal(t, 10, u.OutputTokens)

	heuristic := NewPricer(nil, nil)
	u = heuristic.Usage("openai/gpt-5.1", driven.TokenUsage{}, prompt, "12345678")
	assert.Equal(t, 2+2, u.InputTokens)
	assert.Equal(t, 2, u.OutputTokens)

	u = heuristic.Usage("openai/gpt-5.1", driven.TokenUsage{}, nil, "")
	assert.Equal(t, 0, u.OutputTokens)
	assert.Equal(t, 0.0, u.Cost)
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.0000", FormatCost(0))
	assert.Equal(t, "$0.0123", FormatCost(0.012345))
	assert.Equal(t, "$1.50", FormatCost(1.5))
	assert.Equal(t, "$12.35", FormatCost(12.345))
}
