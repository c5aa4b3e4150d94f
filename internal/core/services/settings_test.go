package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/finsight/internal/core/domain"
)

func newTestSettingsService(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)
	service.SetEnvLookup(func(k string) string { return env[k] })
	return service, store
}

func TestNewSettingsService(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Index.Backend, settings.Index.Backend)
	assert.Equal(t, defaults.Retrieval, settings.Retrieval)
	assert.Equal(t, defaults.Citation, settings.Citation)
	assert.Equal(t, defaults.Generation, settings.Generation)
	assert.Equal(t, defaults.Chunking, settings.Chunking)
	assert.Equal(t, "localhost:19530", settings.Index.MilvusAddress)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("embedding.model", "text-embedding-3-small")
	_ = store.Set("retrieval.top_k", 12)
	_ = store.Set("retrieval.min_similarity", 0.45)
	_ = store.Set("chunking.overlap_lines", 0)
	_ = store.Set("generation.backoff", "2s")
	_ = store.Set("eval.models", []string{"gpt-5.1", "gemini-3-pro"})

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, 12, settings.Retrieval.TopK)
	assert.InDelta(t, 0.45, settings.Retrieval.MinSimilarity, 1e-9)
	assert.Equal(t, 0, settings.Chunking.OverlapLines)
	assert.Equal(t, 2*time.Second, settings.Generation.Backoff)
	assert.Equal(t, []string{"gpt-5.1", "gemini-3-pro"}, settings.Eval.Models)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("index.backend", "qdrant")
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("generation.timeout", "soon")

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Index.Backend, settings.Index.Backend)
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Generation.Timeout, settings.Generation.Timeout)
}

func TestSettingsService_Get_FillsFromEnvironment(t *testing.T) {
	service, store := newTestSettingsService(map[string]string{
		"OPENAI_API_KEY":          "sk-env",
		"OPENROUTER_API_KEY":      "or-env",
		"OPENROUTER_BASE_URL":     "https://router.example/api/v1",
		"FINSIGHT_MILVUS_ADDRESS": "milvus:19530",
	})
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("llm.provider", "openrouter")

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.Equal(t, "or-env", settings.LLM.APIKey)
	assert.Equal(t, "https://router.example/api/v1", settings.LLM.BaseURL)
	assert.Equal(t, "milvus:19530", settings.Index.MilvusAddress)
}

func TestSettingsService_Get_StoredKeyWinsOverEnvironment(t *testing.T) {
	service, store := newTestSettingsService(map[string]string{"ANTHROPIC_API_KEY": "env"})
	_ = store.Set("llm.provider", "anthropic")
	_ = store.Set("llm.api_key", "stored")

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "stored", settings.LLM.APIKey)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.Model = "nomic-embed-text"
	settings.Index.Backend = domain.IndexBackendMemory
	settings.Citation.Threshold = 0.5
	settings.Eval.UnitTimeout = 90 * time.Second

	require.NoError(t, service.Save(&settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, got.Embedding.Provider)
	assert.Equal(t, domain.IndexBackendMemory, got.Index.Backend)
	assert.InDelta(t, 0.5, got.Citation.Threshold, 1e-9)
	assert.Equal(t, 90*time.Second, got.Eval.UnitTimeout)
}

func TestSettingsService_Save_DoesNotPersistEnvKeys(t *testing.T) {
	service, store := newTestSettingsService(map[string]string{"OPENAI_API_KEY": "sk-env"})
	_ = store.Set("embedding.provider", "openai")

	settings, err := service.Get()
	require.NoError(t, err)
	require.NoError(t, service.Save(settings))

	_, exists := store.Get("embedding.api_key")
	assert.False(t, exists)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"int", "retrieval.top_k", "10", 10, false},
		{"float", "citation.threshold", "0.4", 0.4, false},
		{"bool", "retrieval.parse_query", "false", false, false},
		{"duration", "generation.backoff", "250ms", "250ms", false},
		{"list", "eval.models", "gpt-5.1, gemini-3-pro", []string{"gpt-5.1", "gemini-3-pro"}, false},
		{"provider", "llm.provider", "openrouter", "openrouter", false},
		{"backend", "index.backend", "milvus", "milvus", false},
		{"unknown key", "search.mode", "hybrid", nil, true},
		{"bad int", "retrieval.top_k", "ten", nil, true},
		{"bad float", "citation.threshold", "high", nil, true},
		{"bad duration", "generation.timeout", "10", nil, true},
		{"bad provider", "llm.provider", "cohere", nil, true},
		{"bad backend", "index.backend", "qdrant", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestSettingsService(nil)

			err := service.Set(tt.key, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingKeys_Sorted(t *testing.T) {
	keys := SettingKeys()
	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, "citation.threshold")
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	err := service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-small", "sk-test")
	require.NoError(t, err)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	assert.Equal(t, 1536, settings.Index.Dimensions)
	assert.Empty(t, settings.Embedding.BaseURL)
}

func TestSettingsService_SetEmbeddingProvider_Ollama(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, 768, settings.Index.Dimensions)
}

func TestSettingsService_SetEmbeddingProvider_Errors(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	assert.Error(t, service.SetEmbeddingProvider(domain.AIProvider("x"), "", ""))
	assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "key"))
	assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", ""))
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service, _ := newTestSettingsService(map[string]string{"OPENROUTER_API_KEY": "or-env"})

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOpenRouter, "", ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenRouter, settings.LLM.Provider)
	assert.Equal(t, "anthropic/claude-sonnet-4.5", settings.LLM.Model)
	assert.Equal(t, "or-env", settings.LLM.APIKey)
}

func TestSettingsService_SetLLMProvider_RequiresKey(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	assert.Error(t, service.SetLLMProvider(domain.AIProviderAnthropic, "", ""))
}

func TestSettingsService_SetIndexBackend(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	require.NoError(t, service.SetIndexBackend(domain.IndexBackendMilvus))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.IndexBackendMilvus, settings.Index.Backend)

	assert.Error(t, service.SetIndexBackend(domain.IndexBackend("faiss")))
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *SettingsService)
		wantErr bool
	}{
		{
			name:    "embedding not configured",
			setup:   func(s *SettingsService) {},
			wantErr: true,
		},
		{
			name: "valid",
			setup: func(s *SettingsService) {
				_ = s.SetEmbeddingProvider(domain.AIProviderOllama, "", "")
			},
			wantErr: false,
		},
		{
			name: "top_k above max",
			setup: func(s *SettingsService) {
				_ = s.SetEmbeddingProvider(domain.AIProviderOllama, "", "")
				_ = s.Set("retrieval.top_k", "80")
			},
			wantErr: true,
		},
		{
			name: "overlap not smaller than window",
			setup: func(s *SettingsService) {
				_ = s.SetEmbeddingProvider(domain.AIProviderOllama, "", "")
				_ = s.Set("chunking.overlap_lines", "12")
			},
			wantErr: true,
		},
		{
			name: "unknown scorer",
			setup: func(s *SettingsService) {
				_ = s.SetEmbeddingProvider(domain.AIProviderOllama, "", "")
				_ = s.Set("citation.scorer", "cosine")
			},
			wantErr: true,
		},
		{
			name: "threshold out of range",
			setup: func(s *SettingsService) {
				_ = s.SetEmbeddingProvider(domain.AIProviderOllama, "", "")
				_ = s.Set("citation.threshold", "1.5")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestSettingsService(nil)
			tt.setup(service)
			err := service.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type mockAIValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error { return m.embedErr }
func (m *mockAIValidator) ValidateLLM(_ *domain.LLMSettings) error             { return m.llmErr }

func TestSettingsService_ValidateConfigs(t *testing.T) {
	store := memory.NewConfigStore()

	service := NewSettingsService(store, nil)
	assert.NoError(t, service.ValidateEmbeddingConfig())
	assert.NoError(t, service.ValidateLLMConfig())

	failing := errors.New("unreachable")
	service = NewSettingsService(store, &mockAIValidator{embedErr: failing, llmErr: failing})
	assert.ErrorIs(t, service.ValidateEmbeddingConfig(), failing)
	assert.ErrorIs(t, service.ValidateLLMConfig(), failing)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}
