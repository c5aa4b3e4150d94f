package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or chat.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOpenRouter routes to many vendors behind an OpenAI-compatible API.
	AIProviderOpenRouter AIProvider = "openrouter"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderOpenRouter:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderOpenRouter
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderOpenRouter:
		return "OpenRouter (cloud, multi-vendor)"
	default:
		return unknownDescription
	}
}

// IndexBackend selects the Index Store implementation.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendMemory is an in-process exact search, lost on exit.
	IndexBackendMemory IndexBackend = "memory"

	// IndexBackendSQLite persists chunks and embeddings in a local database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendMilvus uses an external Milvus vector database.
	IndexBackendMilvus IndexBackend = "milvus"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendMemory, IndexBackendSQLite, IndexBackendMilvus:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b IndexBackend) Description() string {
	switch b {
	case IndexBackendMemory:
		return "Memory (exact search, not persisted)"
	case IndexBackendSQLite:
		return "SQLite (exact search, persisted locally)"
	case IndexBackendMilvus:
		return "Milvus (external vector database)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Concurrency bounds parallel embedding requests at index time.
	Concurrency int

	// BatchSize is the number of texts sent per request.
	BatchSize int

	// CacheSize is the number of query embeddings kept in memory.
	CacheSize int

	// RequestsPerSecond throttles calls to the provider (0 = unlimited).
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic || e.Provider == AIProviderOpenRouter {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds chat-completion provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the default model name or alias.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenRouter).
	BaseURL string

	// APIKey is the API key.
	APIKey string

	// RequestsPerSecond throttles calls to the provider (0 = unlimited).
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings holds index store configuration.
type IndexSettings struct {
	// Backend selects the store implementation.
	Backend IndexBackend

	// DataDir is where the SQLite database lives (default ~/.finsight/data).
	DataDir string

	// MilvusAddress is the Milvus endpoint, e.g. "localhost:19530".
	MilvusAddress string

	// MilvusCollection is the collection holding chunks.
	MilvusCollection string

	// Dimensions is the embedding vector size (needed to create a Milvus collection).
	Dimensions int
}

// ChunkSettings holds chunker configuration.
type ChunkSettings struct {
	// WindowLines is the target number of lines per chunk.
	WindowLines int

	// OverlapLines is how many trailing lines are repeated in the next chunk.
	OverlapLines int

	// MaxChars cuts a window early once its text would exceed this size.
	MaxChars int

	// Processors names the post-processors run after parsing, in order.
	Processors []string
}

// RetrievalSettings holds retriever configuration.
type RetrievalSettings struct {
	// TopK is the default number of chunks to retrieve.
	TopK int

	// MaxTopK bounds the top-k a caller may request.
	MaxTopK int

	// MinSimilarity drops chunks below this cosine similarity.
	MinSimilarity float64

	// ParseQuery enables ticker/period extraction from question text.
	ParseQuery bool
}

// CitationSettings holds citation resolver configuration.
type CitationSettings struct {
	// Scorer names the overlap function ("ochiai", "jaccard", "containment").
	Scorer string

	// Threshold is the minimum overlap score for a chunk to be cited.
	Threshold float64

	// MaxPerSentence caps citations emitted for one sentence.
	MaxPerSentence int
}

// GenerationSettings holds answer generator configuration.
type GenerationSettings struct {
	// Temperature controls randomness.
	Temperature float64

	// MaxTokens is the completion budget.
	MaxTokens int

	// MaxRetries bounds retries of a failed provider call.
	MaxRetries int

	// Backoff is the base delay of the exponential backoff.
	Backoff time.Duration

	// Timeout bounds a single provider call.
	Timeout time.Duration
}

// EvalSettings holds evaluation harness configuration.
type EvalSettings struct {
	// Models are the aliases or ids evaluated when none are given.
	Models []string

	// JudgeModel scores answers. It is never used for generation.
	JudgeModel string

	// Concurrency is the worker pool size.
	Concurrency int

	// PassThreshold is the score at or above which a result passes.
	PassThreshold float64

	// UnitTimeout bounds one (model, case) pair, judge included.
	UnitTimeout time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Index      IndexSettings
	Chunking   ChunkSettings
	Retrieval  RetrievalSettings
	Citation   CitationSettings
	Generation GenerationSettings
	Eval       EvalSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users must supply credentials.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Concurrency: 4,
			BatchSize:   32,
			CacheSize:   512,
		},
		LLM: LLMSettings{},
		Index: IndexSettings{
			Backend:          IndexBackendSQLite,
			MilvusCollection: "finsight_chunks",
			Dimensions:       1536,
		},
		Chunking: ChunkSettings{
			WindowLines:  12,
			OverlapLines: 3,
			MaxChars:     2000,
			Processors:   []string{"chunker", "sections"},
		},
		Retrieval: RetrievalSettings{
			TopK:          DefaultTopK,
			MaxTopK:       DefaultMaxTopK,
			MinSimilarity: 0.2,
			ParseQuery:    true,
		},
		Citation: CitationSettings{
			Scorer:         "ochiai",
			Threshold:      0.35,
			MaxPerSentence: 3,
		},
		Generation: GenerationSettings{
			Temperature: 0.1,
			MaxTokens:   1024,
			MaxRetries:  3,
			Backoff:     500 * time.Millisecond,
			Timeout:     60 * time.Second,
		},
		Eval: EvalSettings{
			JudgeModel:    DefaultJudgeModel,
			Concurrency:   4,
			PassThreshold: DefaultPassThreshold,
			UnitTimeout:   3 * time.Minute,
		},
	}
}

// AllIndexBackends returns every index backend.
func AllIndexBackends() []IndexBackend {
	return []IndexBackend{
		IndexBackendSQLite,
		IndexBackendMemory,
		IndexBackendMilvus,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support chat completion.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderOpenRouter,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-large",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:     "llama3.2",
		AIProviderOpenAI:     "gpt-4.1-mini",
		AIProviderAnthropic:  "claude-sonnet-4-5",
		AIProviderOpenRouter: "anthropic/claude-sonnet-4.5",
	}
}

// EmbeddingDimensions returns known dimensions for embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
