package driven

import "github.com/custodia-labs/finsight/internal/core/domain"

// AIConfigValidator checks provider settings before the settings service
// persists them. Unconfigured providers are not an error.
type AIConfigValidator interface {
	// ValidateEmbedding pings the embedding provider described by config.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the chat provider described by config.
	ValidateLLM(config *domain.LLMSettings) error
}
