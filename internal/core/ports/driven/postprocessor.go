package driven

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// PostProcessor is one stage of turning a parsed filing into chunks.
type PostProcessor interface {
	// Name identifies the stage in errors and in the pipeline configuration.
	Name() string

	// Process receives the chunks produced by the previous stage (nil for
	// the first stage, which creates them from the document's pages) and
	// returns the chunks for the next stage.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs the configured stages in order.
type PostProcessorPipeline interface {
	// Process returns the final chunks, stamped with the document's
	// ticker, period and source, ready for embedding.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
