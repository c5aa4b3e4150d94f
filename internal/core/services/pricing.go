package services

import (
	"github.com/shopspring/decimal"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

var perMillion = decimal.NewFromInt(1_000_000)

// Pricer turns token counts into cost using the model price table.
// Unknown models cost zero.
type Pricer struct {
	models  *domain.ModelRegistry
	counter driven.TokenCounter
}

// NewPricer creates a pricer. counter may be nil; missing usage then
// falls back to a characters-per-token heuristic.
func NewPricer(models *domain.ModelRegistry, counter driven.TokenCounter) *Pricer {
	if models == nil {
		models = domain.NewModelRegistry(domain.DefaultModels())
	}
	return &Pricer{models: models, counter: counter}
}

// Cost returns the USD cost of the given token counts for model.
func (p *Pricer) Cost(model string, inputTokens, outputTokens int) float64 {
	info, ok := p.models.Lookup(model)
	if !ok {
		return 0
	}
	in := decimal.NewFromInt(int64(inputTokens)).Mul(decimal.NewFromFloat(info.InputPerMillion))
	out := decimal.NewFromInt(int64(outputTokens)).Mul(decimal.NewFromFloat(info.OutputPerMillion))
	return in.Add(out).Div(perMillion).Round(8).InexactFloat64()
}

// Usage builds the usage record of one completion. When the provider
// reported no usage, tokens are counted locally from prompt and output
// and the usage is marked estimated.
func (p *Pricer) Usage(model string, reported driven.TokenUsage, prompt []driven.ChatMessage, output string) domain.Usage {
	u := domain.Usage{
		InputTokens:  reported.InputTokens,
		OutputTokens: reported.OutputTokens,
	}
	if reported.IsZero() {
		for _, m := range prompt {
			u.InputTokens += p.count(model, m.Content)
		}
		u.OutputTokens = p.count(model, output)
		u.Estimated = true
	}
	u.Cost = p.Cost(model, u.InputTokens, u.OutputTokens)
	return u
}

func (p *Pricer) count(model, text string) int {
	if text == "" {
		return 0
	}
	if p.counter != nil {
		return p.counter.Count(model, text)
	}
	return (len(text) + 3) / 4
}

// FormatCost renders a USD amount for display, e.g. "$0.0123".
// Sub-cent amounts keep four decimal places.
func FormatCost(cost float64) string {
	d := decimal.NewFromFloat(cost)
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "$" + d.StringFixed(2)
	}
	return "$" + d.StringFixed(4)
}
