package ai

import (
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved.
// Failures carry KindProvider so the CLI maps them to the provider exit path.
type ConfigValidator struct {
	validateEmbedding func(*domain.EmbeddingSettings) error
	validateLLM       func(*domain.LLMSettings) error
}

// NewConfigValidator creates a validator that pings the configured providers.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		validateEmbedding: ValidateEmbeddingConfig,
		validateLLM:       ValidateLLMConfig,
	}
}

// ValidateEmbedding builds the embedding service and pings it.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	return domain.NewError(domain.KindProvider, "validate embedding", v.validateEmbedding(config))
}

// ValidateLLM builds the LLM service and pings it.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	return domain.NewError(domain.KindProvider, "validate llm", v.validateLLM(config))
}
