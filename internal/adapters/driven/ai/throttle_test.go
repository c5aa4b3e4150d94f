package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

type stubLLM struct{ calls int }

func (s *stubLLM) Complete(_ context.Context, _ driven.CompletionRequest) (*driven.Completion, error) {
	s.calls++
	return &driven.Completion{Text: "ok"}, nil
}
func (s *stubLLM) ModelName() string            { return "stub" }
func (s *stubLLM) Ping(_ context.Context) error { return nil }
func (s *stubLLM) Close() error                 { return nil }

type stubEmbedder struct{ calls int }

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return []float32{1}, nil
}
func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	return make([][]float32, len(texts)), nil
}
func (s *stubEmbedder) Dimensions() int              { return 1 }
func (s *stubEmbedder) ModelName() string            { return "stub" }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

func TestThrottledLLM_Delegates(t *testing.T) {
	inner := &stubLLM{}
	svc := NewThrottledLLM(inner, 100)

	c, err := svc.Complete(context.Background(), driven.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Text)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "stub", svc.ModelName())
}

func TestThrottledLLM_WaitsForToken(t *testing.T) {
	inner := &stubLLM{}
	svc := NewThrottledLLM(inner, 10)

	start := time.Now()
	for i := 0; i < 12; i++ {
		_, err := svc.Complete(context.Background(), driven.CompletionRequest{})
		require.NoError(t, err)
	}

	// Burst of 10, then two more at 10/s.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 12, inner.calls)
}

func TestThrottledLLM_ContextCancelled(t *testing.T) {
	inner := &stubLLM{}
	svc := NewThrottledLLM(inner, 0.01)

	_, err := svc.Complete(context.Background(), driven.CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Complete(ctx, driven.CompletionRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestThrottledEmbedding(t *testing.T) {
	inner := &stubEmbedder{}
	svc := NewThrottledEmbedding(inner, 50)

	_, err := svc.Embed(context.Background(), "a")
	require.NoError(t, err)
	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 1, svc.Dimensions())
}

func TestNewLimiter_MinimumBurst(t *testing.T) {
	assert.Equal(t, 1, newLimiter(0.5).Burst())
	assert.Equal(t, 3, newLimiter(2.5).Burst())
}
