package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/finsight/internal/core/domain"
)

// fakeOllama answers the ping endpoint used by both Ollama adapters.
func fakeOllama(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()

	result.EmbeddingService = createOllamaEmbedding(&domain.EmbeddingSettings{Model: "nomic-embed-text"})
	result.LLMService = createOllamaLLM(&domain.LLMSettings{Model: "llama3.2"})
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		errContains string
	}{
		{"nil settings", nil, true, ""},
		{"unconfigured", &domain.EmbeddingSettings{}, true, ""},
		{"ollama", &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}, false, ""},
		{"openai", &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "text-embedding-3-small"}, false, ""},
		{"openai without key", &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}, true, ""},
		{"anthropic", &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, true, "anthropic does not support embeddings"},
		{"openrouter", &domain.EmbeddingSettings{Provider: domain.AIProviderOpenRouter, APIKey: "k"}, true, "openrouter does not support embeddings"},
		{"unknown provider", &domain.EmbeddingSettings{Provider: "unknown", APIKey: "k"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
	}{
		{"nil settings", nil, true},
		{"unconfigured", &domain.LLMSettings{}, true},
		{"ollama", &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, false},
		{"openai", &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4.1-mini"}, false},
		{"anthropic", &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, false},
		{"openrouter", &domain.LLMSettings{Provider: domain.AIProviderOpenRouter, APIKey: "k"}, false},
		{"openrouter without key", &domain.LLMSettings{Provider: domain.AIProviderOpenRouter}, true},
		{"unknown provider", &domain.LLMSettings{Provider: "unknown", APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateAndValidateEmbeddingService_Wrapped(t *testing.T) {
	settings := &domain.EmbeddingSettings{
		Provider:          domain.AIProviderOllama,
		BaseURL:           fakeOllama(t),
		Model:             "nomic-embed-text",
		CacheSize:         16,
		RequestsPerSecond: 5,
	}

	svc, err := CreateAndValidateEmbeddingService(settings)
	require.NoError(t, err)
	defer svc.Close()

	cached, ok := svc.(*cache.EmbeddingService)
	require.True(t, ok, "cache should be the outermost decorator")
	assert.Equal(t, 768, cached.Dimensions())
	assert.Equal(t, "nomic-embed-text", cached.ModelName())
}

func TestCreateAndValidateEmbeddingService_Errors(t *testing.T) {
	_, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err = CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "unreachable")

	svc, err := CreateAndValidateEmbeddingService(nil)
	assert.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateAndValidateLLMService(t *testing.T) {
	svc, err := CreateAndValidateLLMService(&domain.LLMSettings{
		Provider:          domain.AIProviderOllama,
		BaseURL:           fakeOllama(t),
		RequestsPerSecond: 2,
	})
	require.NoError(t, err)
	defer svc.Close()

	_, ok := svc.(*ThrottledLLM)
	assert.True(t, ok)

	svc, err = CreateAndValidateLLMService(&domain.LLMSettings{})
	assert.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateAndValidateLLMService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestInitialise(t *testing.T) {
	url := fakeOllama(t)
	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.BaseURL = url
	settings.LLM.Provider = domain.AIProviderAnthropic

	result := Initialise(&settings)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.Nil(t, result.LLMService, "anthropic without a key is not configured")
	assert.Empty(t, result.Warnings)

	assert.Empty(t, Initialise(nil).Warnings)
}

func TestInitialise_Warnings(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderAnthropic

	result := Initialise(&settings)
	defer result.Close()

	assert.Nil(t, result.EmbeddingService)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not support embeddings")
}

func TestValidateConfigs(t *testing.T) {
	assert.NoError(t, ValidateEmbeddingConfig(nil))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{}))
	assert.Error(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic}))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: fakeOllama(t)}))

	assert.NoError(t, ValidateLLMConfig(nil))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{Provider: "unknown", APIKey: "k"}))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: fakeOllama(t)}))
}
