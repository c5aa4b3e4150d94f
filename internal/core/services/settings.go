package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedConcurrency = "embedding.concurrency"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedCacheSize   = "embedding.cache_size"
	keyEmbedRPS         = "embedding.rps"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMRPS           = "llm.rps"
	keyIndexBackend     = "index.backend"
	keyIndexDataDir     = "index.data_dir"
	keyMilvusAddress    = "index.milvus_address"
	keyMilvusCollection = "index.milvus_collection"
	keyIndexDimensions  = "index.dimensions"
	keyChunkWindow      = "chunking.window_lines"
	keyChunkOverlap     = "chunking.overlap_lines"
	keyChunkMaxChars    = "chunking.max_chars"
	keyChunkProcessors  = "chunking.processors"
	keyTopK             = "retrieval.top_k"
	keyMaxTopK          = "retrieval.max_top_k"
	keyMinSimilarity    = "retrieval.min_similarity"
	keyParseQuery       = "retrieval.parse_query"
	keyCitationScorer   = "citation.scorer"
	keyCitationThresh   = "citation.threshold"
	keyCitationMax      = "citation.max_per_sentence"
	keyGenTemperature   = "generation.temperature"
	keyGenMaxTokens     = "generation.max_tokens"
	keyGenMaxRetries    = "generation.max_retries"
	keyGenBackoff       = "generation.backoff"
	keyGenTimeout       = "generation.timeout"
	keyEvalModels       = "eval.models"
	keyEvalJudge        = "eval.judge_model"
	keyEvalConcurrency  = "eval.concurrency"
	keyEvalPass         = "eval.pass_threshold"
	keyEvalUnitTimeout  = "eval.unit_timeout"
)

// Environment variables that fill unset credentials and endpoints.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	envOpenAIKey      = "OPENAI_API_KEY"
	envAnthropicKey   = "ANTHROPIC_API_KEY"
	envOpenRouterKey  = "OPENROUTER_API_KEY"
	envOpenRouterURL  = "OPENROUTER_BASE_URL"
	envMilvusAddress  = "FINSIGHT_MILVUS_ADDRESS"
	defaultOllamaURL  = "http://localhost:11434"
	defaultMilvusAddr = "localhost:19530"
)

const (
	settingKindString   = "string"
	settingKindInt      = "int"
	settingKindFloat    = "float"
	settingKindBool     = "bool"
	settingKindList     = "list"
	settingKindDur      = "duration"
	settingKindProvider = "provider"
)

// settingKinds maps every settable key to the type its value is parsed as.
var settingKinds = map[string]string{
	keyEmbedProvider:    settingKindProvider,
	keyEmbedModel:       settingKindString,
	keyEmbedBaseURL:     settingKindString,
	keyEmbedAPIKey:      settingKindString,
	keyEmbedConcurrency: settingKindInt,
	keyEmbedBatchSize:   settingKindInt,
	keyEmbedCacheSize:   settingKindInt,
	keyEmbedRPS:         settingKindFloat,
	keyLLMProvider:      settingKindProvider,
	keyLLMModel:         settingKindString,
	keyLLMBaseURL:       settingKindString,
	keyLLMAPIKey:        settingKindString,
	keyLLMRPS:           settingKindFloat,
	keyIndexBackend:     settingKindString,
	keyIndexDataDir:     settingKindString,
	keyMilvusAddress:    settingKindString,
	keyMilvusCollection: settingKindString,
	keyIndexDimensions:  settingKindInt,
	keyChunkWindow:      settingKindInt,
	keyChunkOverlap:     settingKindInt,
	keyChunkMaxChars:    settingKindInt,
	keyChunkProcessors:  settingKindList,
	keyTopK:             settingKindInt,
	keyMaxTopK:          settingKindInt,
	keyMinSimilarity:    settingKindFloat,
	keyParseQuery:       settingKindBool,
	keyCitationScorer:   settingKindString,
	keyCitationThresh:   settingKindFloat,
	keyCitationMax:      settingKindInt,
	keyGenTemperature:   settingKindFloat,
	keyGenMaxTokens:     settingKindInt,
	keyGenMaxRetries:    settingKindInt,
	keyGenBackoff:       settingKindDur,
	keyGenTimeout:       settingKindDur,
	keyEvalModels:       settingKindList,
	keyEvalJudge:        settingKindString,
	keyEvalConcurrency:  settingKindInt,
	keyEvalPass:         settingKindFloat,
	keyEvalUnitTimeout:  settingKindDur,
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// SetEnvLookup replaces the environment lookup used to fill credentials.
func (s *SettingsService) SetEnvLookup(fn func(string) string) {
	if fn == nil {
		fn = func(string) string { return "" }
	}
	s.getenv = fn
}

// Get retrieves current application settings. Unset API keys and
// endpoints are filled from the environment.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Concurrency:       s.getInt(keyEmbedConcurrency, d.Embedding.Concurrency),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			CacheSize:         s.getInt(keyEmbedCacheSize, d.Embedding.CacheSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerSecond: s.getFloat(keyLLMRPS, d.LLM.RequestsPerSecond),
		},
		Index: domain.IndexSettings{
			Backend:          s.getBackend(d.Index.Backend),
			DataDir:          s.getString(keyIndexDataDir, d.Index.DataDir),
			MilvusAddress:    s.getString(keyMilvusAddress, d.Index.MilvusAddress),
			MilvusCollection: s.getString(keyMilvusCollection, d.Index.MilvusCollection),
			Dimensions:       s.getInt(keyIndexDimensions, d.Index.Dimensions),
		},
		Chunking: domain.ChunkSettings{
			WindowLines:  s.getInt(keyChunkWindow, d.Chunking.WindowLines),
			OverlapLines: s.getIntAllowZero(keyChunkOverlap, d.Chunking.OverlapLines),
			MaxChars:     s.getInt(keyChunkMaxChars, d.Chunking.MaxChars),
			Processors:   s.getStringSlice(keyChunkProcessors, d.Chunking.Processors),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:          s.getInt(keyTopK, d.Retrieval.TopK),
			MaxTopK:       s.getInt(keyMaxTopK, d.Retrieval.MaxTopK),
			MinSimilarity: s.getFloat(keyMinSimilarity, d.Retrieval.MinSimilarity),
			ParseQuery:    s.getBool(keyParseQuery, d.Retrieval.ParseQuery),
		},
		Citation: domain.CitationSettings{
			Scorer:         s.getString(keyCitationScorer, d.Citation.Scorer),
			Threshold:      s.getFloat(keyCitationThresh, d.Citation.Threshold),
			MaxPerSentence: s.getInt(keyCitationMax, d.Citation.MaxPerSentence),
		},
		Generation: domain.GenerationSettings{
			Temperature: s.getFloat(keyGenTemperature, d.Generation.Temperature),
			MaxTokens:   s.getInt(keyGenMaxTokens, d.Generation.MaxTokens),
			MaxRetries:  s.getIntAllowZero(keyGenMaxRetries, d.Generation.MaxRetries),
			Backoff:     s.getDuration(keyGenBackoff, d.Generation.Backoff),
			Timeout:     s.getDuration(keyGenTimeout, d.Generation.Timeout),
		},
		Eval: domain.EvalSettings{
			Models:        s.getStringSlice(keyEvalModels, d.Eval.Models),
			JudgeModel:    s.getString(keyEvalJudge, d.Eval.JudgeModel),
			Concurrency:   s.getInt(keyEvalConcurrency, d.Eval.Concurrency),
			PassThreshold: s.getFloat(keyEvalPass, d.Eval.PassThreshold),
			UnitTimeout:   s.getDuration(keyEvalUnitTimeout, d.Eval.UnitTimeout),
		},
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv fills empty credentials and endpoints from environment variables.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.keyFor(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.keyFor(settings.LLM.Provider)
	}
	if settings.LLM.Provider == domain.AIProviderOpenRouter && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = s.getenv(envOpenRouterURL)
	}
	if settings.Index.MilvusAddress == "" {
		settings.Index.MilvusAddress = s.getenv(envMilvusAddress)
	}
	if settings.Index.MilvusAddress == "" {
		settings.Index.MilvusAddress = defaultMilvusAddr
	}
}

func (s *SettingsService) keyFor(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(envOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(envAnthropicKey)
	case domain.AIProviderOpenRouter:
		return s.getenv(envOpenRouterKey)
	default:
		return ""
	}
}

// Save persists application settings. API keys are written only when set,
// so keys supplied by the environment never land in the config file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedConcurrency, settings.Embedding.Concurrency},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedCacheSize, settings.Embedding.CacheSize},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
		{keyIndexBackend, settings.Index.Backend.String()},
		{keyIndexDataDir, settings.Index.DataDir},
		{keyMilvusAddress, settings.Index.MilvusAddress},
		{keyMilvusCollection, settings.Index.MilvusCollection},
		{keyIndexDimensions, settings.Index.Dimensions},
		{keyChunkWindow, settings.Chunking.WindowLines},
		{keyChunkOverlap, settings.Chunking.OverlapLines},
		{keyChunkMaxChars, settings.Chunking.MaxChars},
		{keyChunkProcessors, settings.Chunking.Processors},
		{keyTopK, settings.Retrieval.TopK},
		{keyMaxTopK, settings.Retrieval.MaxTopK},
		{keyMinSimilarity, settings.Retrieval.MinSimilarity},
		{keyParseQuery, settings.Retrieval.ParseQuery},
		{keyCitationScorer, settings.Citation.Scorer},
		{keyCitationThresh, settings.Citation.Threshold},
		{keyCitationMax, settings.Citation.MaxPerSentence},
		{keyGenTemperature, settings.Generation.Temperature},
		{keyGenMaxTokens, settings.Generation.MaxTokens},
		{keyGenMaxRetries, settings.Generation.MaxRetries},
		{keyGenBackoff, settings.Generation.Backoff.String()},
		{keyGenTimeout, settings.Generation.Timeout.String()},
		{keyEvalModels, settings.Eval.Models},
		{keyEvalJudge, settings.Eval.JudgeModel},
		{keyEvalConcurrency, settings.Eval.Concurrency},
		{keyEvalPass, settings.Eval.PassThreshold},
		{keyEvalUnitTimeout, settings.Eval.UnitTimeout.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.keyFor(settings.Embedding.Provider) {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.keyFor(settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return domain.NewValidationError("unknown setting %q", key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case settingKindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.NewValidationError("%s: %q is not an integer", key, value)
		}
		parsed = n
	case settingKindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return domain.NewValidationError("%s: %q is not a number", key, value)
		}
		parsed = f
	case settingKindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return domain.NewValidationError("%s: %q is not a boolean", key, value)
		}
		parsed = b
	case settingKindDur:
		if _, err := time.ParseDuration(value); err != nil {
			return domain.NewValidationError("%s: %q is not a duration", key, value)
		}
		parsed = value
	case settingKindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	case settingKindProvider:
		if !domain.AIProvider(value).IsValid() {
			return domain.NewValidationError("%s: unknown provider %q", key, value)
		}
		parsed = value
	default:
		parsed = value
	}

	if key == keyIndexBackend && !domain.IndexBackend(value).IsValid() {
		return domain.NewValidationError("%s: unknown backend %q", key, value)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if apiKey == "" {
		apiKey = s.keyFor(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Index dimensions follow the embedding model.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Index.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if apiKey == "" {
		apiKey = s.keyFor(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else if provider != domain.AIProviderOpenRouter {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetIndexBackend selects the index store.
func (s *SettingsService) SetIndexBackend(backend domain.IndexBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid index backend: %s", backend)
	}
	return s.Set(keyIndexBackend, backend.String())
}

// Validate checks that current settings are coherent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return domain.NewValidationError("embedding provider is not configured")
	}
	if !settings.Index.Backend.IsValid() {
		return domain.NewValidationError("invalid index backend: %s", settings.Index.Backend)
	}
	if settings.Retrieval.TopK > settings.Retrieval.MaxTopK {
		return domain.NewValidationError("retrieval.top_k %d exceeds retrieval.max_top_k %d",
			settings.Retrieval.TopK, settings.Retrieval.MaxTopK)
	}
	if settings.Chunking.OverlapLines >= settings.Chunking.WindowLines {
		return domain.NewValidationError("chunking.overlap_lines must be smaller than chunking.window_lines")
	}
	if t := settings.Citation.Threshold; t < 0 || t > 1 {
		return domain.NewValidationError("citation.threshold must be within [0, 1], got %v", t)
	}
	if _, ok := citationScorers[settings.Citation.Scorer]; !ok {
		return domain.NewValidationError("unknown citation.scorer %q", settings.Citation.Scorer)
	}
	if p := settings.Eval.PassThreshold; p < 0 || p > 1 {
		return domain.NewValidationError("eval.pass_threshold must be within [0, 1], got %v", p)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit 0 as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s.configStore.GetString(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.IndexBackend) domain.IndexBackend {
	backend := domain.IndexBackend(s.configStore.GetString(keyIndexBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
