package driving

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// AnswerService answers questions from retrieved context with citations.
type AnswerService interface {
	// Ask retrieves context for q, generates an answer and resolves its citations.
	// When nothing is retrieved it answers with what data is available
	// instead of calling the model.
	Ask(ctx context.Context, q domain.Query) (*domain.Answer, error)
}
