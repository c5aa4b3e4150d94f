package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// IndexService ingests documents into the index and manages what is indexed.
type IndexService interface {
	// IndexFile parses the file at path and indexes it with meta.
	IndexFile(ctx context.Context, path string, meta domain.DocumentMeta) (*IndexReport, error)

	// IndexDocument chunks, embeds and upserts an already parsed document.
	// Re-indexing unchanged content is a no-op; chunks that no longer
	// exist are removed.
	IndexDocument(ctx context.Context, doc *domain.Document) (*IndexReport, error)

	// IndexDocuments indexes several documents. A failing document is
	// reported in its own IndexReport and does not stop the others.
	IndexDocuments(ctx context.Context, docs []*domain.Document) []IndexReport

	// DeleteDocument removes a document and all its chunks.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// ListDocuments returns indexed documents matching filter.
	ListDocuments(ctx context.Context, filter domain.Filter) ([]domain.DocumentRecord, error)

	// Availability maps each indexed ticker to its periods.
	Availability(ctx context.Context) (map[string][]string, error)
}

// IndexReport summarises one indexing operation.
type IndexReport struct {
	DocumentID string        `json:"document_id"`
	Pages      int           `json:"pages"`
	Chunks     int           `json:"chunks"`
	Embedded   int           `json:"embedded"`
	Unchanged  int           `json:"unchanged"`
	Removed    int           `json:"removed"`
	Duration   time.Duration `json:"duration"`

	// Err is set when the document failed in a batch.
	Err error `json:"-"`
}
