package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(Config{APIKey: "or-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)

	svc, err := NewLLMService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
}

func TestComplete(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google/gemini-3-pro-preview", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"gen-1","object":"chat.completion","model":"google/gemini-3-pro-preview",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Cloud revenue grew 34%."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":2048,"completion_tokens":9,"total_tokens":2057}}`))
	})

	c, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Model:    "google/gemini-3-pro-preview",
		Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "Cloud growth?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Cloud revenue grew 34%.", c.Text)
	assert.Equal(t, "google/gemini-3-pro-preview", c.Model)
	assert.Equal(t, driven.TokenUsage{InputTokens: 2048, OutputTokens: 9}, c.Usage)
	assert.Equal(t, "stop", c.FinishReason)
}

func TestComplete_NoChoices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-2","choices":[]}`))
	})

	_, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}},
	})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestComplete_RateLimited(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded","code":429}}`))
	})

	_, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}},
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var statusErr driven.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 429, statusErr.StatusCode())
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
