package driven

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// IndexStore persists chunks with their embeddings and answers filtered
// nearest-neighbour queries by cosine similarity.
//
// Upsert is idempotent by chunk id. Search applies the filter before
// ranking, never after, so a filtered query cannot be starved by
// non-matching neighbours. Results are ordered by descending similarity
// with ties broken by document order.
type IndexStore interface {
	// Upsert inserts or replaces chunks by id. Every chunk must carry an
	// embedding of the store's dimension.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Search returns up to k chunks matching filter, nearest first.
	Search(ctx context.Context, embedding []float32, filter domain.Filter, k int) ([]domain.ScoredChunk, error)

	// ChunkIDs returns the ids of all chunks of a document.
	ChunkIDs(ctx context.Context, documentID string) ([]string, error)

	// DeleteChunks removes chunks by id. Unknown ids are ignored.
	DeleteChunks(ctx context.Context, ids []string) error

	// DeleteDocument removes all chunks of a document and returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the number of chunks matching filter.
	Count(ctx context.Context, filter domain.Filter) (int, error)

	// Availability maps each indexed ticker (uppercase) to its sorted periods.
	Availability(ctx context.Context) (map[string][]string, error)

	// Close releases resources.
	Close() error
}

// DocumentStore persists summaries of indexed documents.
type DocumentStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, rec *domain.DocumentRecord) error

	// GetDocument retrieves a record by ID. Returns domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// ListDocuments returns records matching filter, ordered by ticker, period, id.
	ListDocuments(ctx context.Context, filter domain.Filter) ([]domain.DocumentRecord, error)

	// DeleteDocument removes a record. Unknown ids are ignored.
	DeleteDocument(ctx context.Context, id string) error
}
