package services

import (
	"context"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.RetrievalService = (*Retriever)(nil)

// Retriever embeds questions and searches the index with metadata filters.
type Retriever struct {
	embedder driven.EmbeddingService
	index    driven.IndexStore
	settings domain.RetrievalSettings
	retry    RetryPolicy
	metrics  driven.Metrics
}

// NewRetriever creates a retriever.
func NewRetriever(embedder driven.EmbeddingService, index driven.IndexStore, settings domain.RetrievalSettings) *Retriever {
	if settings.MaxTopK <= 0 {
		settings.MaxTopK = domain.DefaultMaxTopK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		settings: settings,
		retry:    DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the retry policy for query embedding.
func (r *Retriever) SetRetryPolicy(p RetryPolicy) {
	r.retry = p
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (r *Retriever) SetMetrics(m driven.Metrics) {
	r.metrics = m
}

// Retrieve validates q, embeds its question and searches the index.
// Results below the minimum similarity are dropped even when that leaves
// fewer than TopK chunks.
func (r *Retriever) Retrieve(ctx context.Context, q domain.Query) (*domain.Retrieval, error) {
	logger.Section("Retrieval")
	defer logger.Timed("retrieve")()
	start := time.Now()

	if r.embedder == nil {
		return nil, domain.NewError(domain.KindProvider, "embed query", domain.ErrEmbeddingUnavailable)
	}
	if r.index == nil {
		return nil, domain.NewError(domain.KindIndex, "search", domain.ErrIndexUnavailable)
	}

	if r.settings.ParseQuery {
		q = MergeQuery(q, ParseQuery(q.Question, r.knownTickers(ctx)))
	}
	if err := q.Validate(r.settings.MaxTopK); err != nil {
		logger.Debug("Rejected query: %v", err)
		return nil, err
	}

	filter := q.Filter()
	logger.Debug("Question: %q", q.Question)
	logger.Debug("Filter: tickers=%v period=%q top_k=%d", filter.Tickers, filter.Period, q.TopK)

	var vector []float32
	_, err := withRetry(ctx, r.retry, "embed query", func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = r.embedder.Embed(ctx, q.Question)
		return embedErr
	})
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, domain.NewError(domain.KindProvider, "embed query", err)
	}

	hits, err := r.index.Search(ctx, vector, filter, q.TopK)
	if err != nil {
		logger.Warn("Index search failed: %v", err)
		return nil, domain.NewError(domain.KindIndex, "search", err)
	}
	logger.Debug("Index returned %d candidates", len(hits))

	kept := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < r.settings.MinSimilarity {
			continue
		}
		kept = append(kept, h)
	}
	dropped := len(hits) - len(kept)
	if dropped > 0 {
		logger.Debug("Dropped %d chunks below similarity %.3f", dropped, r.settings.MinSimilarity)
	}
	logger.Info("Retrieved %d chunks", len(kept))

	if r.metrics != nil {
		r.metrics.ObserveRetrieval(time.Since(start), len(kept))
	}

	return &domain.Retrieval{
		Query:   q,
		Filter:  filter,
		Chunks:  kept,
		Dropped: dropped,
	}, nil
}

// knownTickers returns indexed tickers for bare-ticker parsing. Failures
// only disable that parsing.
func (r *Retriever) knownTickers(ctx context.Context) []string {
	avail, err := r.index.Availability(ctx)
	if err != nil {
		logger.Warn("Availability lookup failed, skipping ticker parsing: %v", err)
		return nil
	}
	known := make([]string, 0, len(avail))
	for t := range avail {
		known = append(known, t)
	}
	return known
}
