package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// Default indexing values.
const (
	DefaultEmbedConcurrency = 4
	DefaultEmbedBatchSize   = 32
	documentConcurrency     = 2
)

// IndexService parses, chunks, embeds and stores documents.
// Writes are serialised per document id; different documents are indexed
// concurrently.
type IndexService struct {
	parsers  driven.ParserRegistry
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	index    driven.IndexStore
	docs     driven.DocumentStore
	settings domain.EmbeddingSettings
	retry    RetryPolicy
	locks    *keyedMutex
	metrics  driven.Metrics
	now      func() time.Time
}

// NewIndexService creates an index service. parsers and docs may be nil;
// IndexFile and ListDocuments then report the missing dependency.
func NewIndexService(
	parsers driven.ParserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.IndexStore,
	docs driven.DocumentStore,
	settings domain.EmbeddingSettings,
) *IndexService {
	if settings.Concurrency <= 0 {
		settings.Concurrency = DefaultEmbedConcurrency
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = DefaultEmbedBatchSize
	}
	return &IndexService{
		parsers:  parsers,
		pipeline: pipeline,
		embedder: embedder,
		index:    index,
		docs:     docs,
		settings: settings,
		retry:    DefaultRetryPolicy(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// SetRetryPolicy overrides the retry policy for embedding batches.
func (s *IndexService) SetRetryPolicy(p RetryPolicy) {
	s.retry = p
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (s *IndexService) SetMetrics(m driven.Metrics) {
	s.metrics = m
}

// IndexFile parses the file at path and indexes the resulting document.
func (s *IndexService) IndexFile(ctx context.Context, path string, meta domain.DocumentMeta) (*driving.IndexReport, error) {
	if s.parsers == nil {
		return nil, fmt.Errorf("index %s: no parsers configured: %w", path, domain.ErrUnsupportedType)
	}
	doc, err := s.parsers.ParseFile(ctx, path, meta)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	logger.Debug("Parsed %s", doc)
	return s.IndexDocument(ctx, doc)
}

// IndexDocument chunks doc, embeds chunks that are not already stored and
// replaces the document's previous chunk set. Chunk ids are content
// hashes, so unchanged chunks are neither re-embedded nor rewritten.
func (s *IndexService) IndexDocument(ctx context.Context, doc *domain.Document) (*driving.IndexReport, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if s.pipeline == nil {
		return nil, errors.New("index document: no chunking pipeline configured")
	}
	if s.embedder == nil {
		return nil, domain.NewError(domain.KindProvider, "embed chunks", domain.ErrEmbeddingUnavailable)
	}
	if s.index == nil {
		return nil, domain.NewError(domain.KindIndex, "upsert", domain.ErrIndexUnavailable)
	}

	logger.Section("Index " + doc.ID)
	defer logger.Timed("index " + doc.ID)()
	start := time.Now()

	normalised := *doc
	normalised.Period = domain.NormalisePeriod(doc.Period)

	chunks, err := s.pipeline.Process(ctx, &normalised)
	if err != nil {
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	logger.Debug("Chunked into %d chunks", len(chunks))

	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	existingIDs, err := s.index.ChunkIDs(ctx, doc.ID)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "list chunks", err)
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	current := make(map[string]bool, len(chunks))
	var fresh []domain.Chunk
	for _, c := range chunks {
		current[c.ID] = true
		if !existing[c.ID] {
			fresh = append(fresh, c)
		}
	}
	var removed []string
	for _, id := range existingIDs {
		if !current[id] {
			removed = append(removed, id)
		}
	}

	if err := s.embedChunks(ctx, fresh); err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if err := s.index.Upsert(ctx, fresh); err != nil {
			return nil, domain.NewError(domain.KindIndex, "upsert", err)
		}
	}
	if len(removed) > 0 {
		if err := s.index.DeleteChunks(ctx, removed); err != nil {
			return nil, domain.NewError(domain.KindIndex, "delete stale chunks", err)
		}
	}

	if s.docs != nil {
		rec := normalised.Record(len(chunks), s.now().UTC())
		if err := s.docs.SaveDocument(ctx, &rec); err != nil {
			return nil, domain.NewError(domain.KindIndex, "save document", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveIndexed(len(fresh))
	}

	report := &driving.IndexReport{
		DocumentID: doc.ID,
		Pages:      len(doc.Pages),
		Chunks:     len(chunks),
		Embedded:   len(fresh),
		Unchanged:  len(chunks) - len(fresh),
		Removed:    len(removed),
		Duration:   time.Since(start),
	}
	logger.Info("Indexed %s: %d chunks (%d embedded, %d unchanged, %d removed)",
		doc.ID, report.Chunks, report.Embedded, report.Unchanged, report.Removed)
	return report, nil
}

// embedChunks fills in embeddings batch by batch, running up to the
// configured number of batches concurrently.
func (s *IndexService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)

	for start := 0; start < len(chunks); start += s.settings.BatchSize {
		end := min(start+s.settings.BatchSize, len(chunks))
		batch := chunks[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}

			var vectors [][]float32
			_, err := withRetry(gctx, s.retry, "embed chunks", func(ctx context.Context) error {
				var embedErr error
				vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
				return embedErr
			})
			if err != nil {
				return domain.NewError(domain.KindProvider, "embed chunks", err)
			}
			if len(vectors) != len(batch) {
				return domain.NewError(domain.KindProvider, "embed chunks",
					fmt.Errorf("got %d vectors for %d texts: %w", len(vectors), len(batch), domain.ErrMalformedResponse))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	return g.Wait()
}

// IndexDocuments indexes docs with bounded concurrency. Each document
// gets its own report; failures do not stop the others.
func (s *IndexService) IndexDocuments(ctx context.Context, docs []*domain.Document) []driving.IndexReport {
	reports := make([]driving.IndexReport, len(docs))

	var g errgroup.Group
	g.SetLimit(documentConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			report, err := s.IndexDocument(ctx, doc)
			if err != nil {
				id := ""
				if doc != nil {
					id = doc.ID
				}
				logger.Warn("Indexing %s failed: %v", id, err)
				reports[i] = driving.IndexReport{DocumentID: id, Err: err}
				return nil
			}
			reports[i] = *report
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// DeleteDocument removes a document and its chunks.
func (s *IndexService) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if s.index == nil {
		return 0, domain.NewError(domain.KindIndex, "delete", domain.ErrIndexUnavailable)
	}
	unlock := s.locks.Lock(documentID)
	defer unlock()

	n, err := s.index.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, domain.NewError(domain.KindIndex, "delete document", err)
	}
	if s.docs != nil {
		if err := s.docs.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return n, domain.NewError(domain.KindIndex, "delete document record", err)
		}
	}
	logger.Info("Deleted %s: %d chunks", documentID, n)
	return n, nil
}

// ListDocuments returns indexed documents matching filter.
func (s *IndexService) ListDocuments(ctx context.Context, filter domain.Filter) ([]domain.DocumentRecord, error) {
	if s.docs == nil {
		return nil, domain.NewError(domain.KindIndex, "list documents", domain.ErrIndexUnavailable)
	}
	recs, err := s.docs.ListDocuments(ctx, filter)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "list documents", err)
	}
	return recs, nil
}

// Availability maps each indexed ticker to its periods.
func (s *IndexService) Availability(ctx context.Context) (map[string][]string, error) {
	if s.index == nil {
		return nil, domain.NewError(domain.KindIndex, "availability", domain.ErrIndexUnavailable)
	}
	avail, err := s.index.Availability(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, "availability", err)
	}
	return avail, nil
}
