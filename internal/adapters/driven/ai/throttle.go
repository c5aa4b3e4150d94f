package ai

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure the throttles implement the interfaces.
var (
	_ driven.EmbeddingService = (*ThrottledEmbedding)(nil)
	_ driven.LLMService       = (*ThrottledLLM)(nil)
)

// newLimiter builds a token bucket for rps with a burst of at least one.
func newLimiter(rps float64) *rate.Limiter {
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// ThrottledEmbedding limits the request rate to an embedding provider.
type ThrottledEmbedding struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// NewThrottledEmbedding wraps svc with a limit of rps requests per second.
func NewThrottledEmbedding(svc driven.EmbeddingService, rps float64) *ThrottledEmbedding {
	return &ThrottledEmbedding{EmbeddingService: svc, limiter: newLimiter(rps)}
}

// Embed waits for a token then delegates.
func (t *ThrottledEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.EmbeddingService.Embed(ctx, text)
}

// EmbedBatch waits for a token then delegates. One batch is one request.
func (t *ThrottledEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.EmbeddingService.EmbedBatch(ctx, texts)
}

// ThrottledLLM limits the request rate to a chat provider.
type ThrottledLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewThrottledLLM wraps svc with a limit of rps requests per second.
func NewThrottledLLM(svc driven.LLMService, rps float64) *ThrottledLLM {
	return &ThrottledLLM{LLMService: svc, limiter: newLimiter(rps)}
}

// Complete waits for a token then delegates.
func (t *ThrottledLLM) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.Completion, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.LLMService.Complete(ctx, req)
}
