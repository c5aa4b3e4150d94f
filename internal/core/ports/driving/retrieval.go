package driving

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// RetrievalService finds the chunks most relevant to a question.
type RetrievalService interface {
	// Retrieve validates q, embeds its question and searches the index.
	// An empty result is not an error.
	Retrieve(ctx context.Context, q domain.Query) (*domain.Retrieval, error)
}
