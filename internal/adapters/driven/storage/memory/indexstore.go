package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory exact-search implementation of driven.IndexStore.
// The embedding dimension is fixed by the first upsert unless given.
type IndexStore struct {
	mu     sync.RWMutex
	dims   int
	chunks map[string]domain.Chunk
	byDoc  map[string]map[string]struct{}
}

// NewIndexStore creates an empty index. dims of 0 adopts the dimension of
// the first upserted chunk.
func NewIndexStore(dims int) *IndexStore {
	return &IndexStore{
		dims:   dims,
		chunks: make(map[string]domain.Chunk),
		byDoc:  make(map[string]map[string]struct{}),
	}
}

// Upsert inserts or replaces chunks by id. The batch is validated before
// anything is written.
func (s *IndexStore) Upsert(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" || c.DocumentID == "" {
			return fmt.Errorf("upsert chunk %d: %w: missing id", i, domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) == 0 || len(c.Embedding) != dims {
			return fmt.Errorf("upsert chunk %s: %w: got %d, want %d",
				c.ID, domain.ErrDimensionMismatch, len(c.Embedding), dims)
		}
	}
	s.dims = dims

	for i := range chunks {
		c := chunks[i]
		c.Ticker = domain.NormaliseTicker(c.Ticker)
		c.Embedding = slices.Clone(c.Embedding)
		if prev, ok := s.chunks[c.ID]; ok && prev.DocumentID != c.DocumentID {
			s.unlink(prev.DocumentID, c.ID)
		}
		s.chunks[c.ID] = c
		ids, ok := s.byDoc[c.DocumentID]
		if !ok {
			ids = make(map[string]struct{})
			s.byDoc[c.DocumentID] = ids
		}
		ids[c.ID] = struct{}{}
	}
	return nil
}

// Search scores every chunk that passes filter and returns the k nearest.
func (s *IndexStore) Search(_ context.Context, embedding []float32, filter domain.Filter, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("search: %w: got %d, want %d", domain.ErrDimensionMismatch, len(embedding), s.dims)
	}

	results := make([]domain.ScoredChunk, 0, len(s.chunks))
	for id := range s.chunks {
		c := s.chunks[id]
		if !filter.Matches(&c) {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk:      c,
			Similarity: domain.CosineSimilarity(embedding, c.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return domain.RankLess(&results[i], &results[j])
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Embedding = slices.Clone(results[i].Embedding)
	}
	return results, nil
}

// GetChunk returns a copy of one chunk.
func (s *IndexStore) GetChunk(id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Embedding = slices.Clone(c.Embedding)
	return &c, nil
}

// ChunkIDs returns the ids of a document's chunks, sorted.
func (s *IndexStore) ChunkIDs(_ context.Context, documentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byDoc[documentID]))
	for id := range s.byDoc[documentID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteChunks removes chunks by id.
func (s *IndexStore) DeleteChunks(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		delete(s.chunks, id)
		s.unlink(c.DocumentID, id)
	}
	return nil
}

// DeleteDocument removes every chunk of a document.
func (s *IndexStore) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDoc[documentID]
	for id := range ids {
		delete(s.chunks, id)
	}
	delete(s.byDoc, documentID)
	return len(ids), nil
}

// unlink drops id from its document's set. Caller holds the write lock.
func (s *IndexStore) unlink(documentID, id string) {
	ids := s.byDoc[documentID]
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.byDoc, documentID)
	}
}

// Count returns the number of chunks matching filter.
func (s *IndexStore) Count(_ context.Context, filter domain.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.IsEmpty() {
		return len(s.chunks), nil
	}
	n := 0
	for id := range s.chunks {
		c := s.chunks[id]
		if filter.Matches(&c) {
			n++
		}
	}
	return n, nil
}

// Availability maps each uppercase ticker to its sorted periods.
func (s *IndexStore) Availability(_ context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]map[string]struct{})
	for id := range s.chunks {
		c := s.chunks[id]
		t := strings.ToUpper(c.Ticker)
		if seen[t] == nil {
			seen[t] = make(map[string]struct{})
		}
		seen[t][c.Period] = struct{}{}
	}
	return collectAvailability(seen), nil
}

func collectAvailability(seen map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(seen))
	for ticker, periods := range seen {
		list := make([]string, 0, len(periods))
		for p := range periods {
			list = append(list, p)
		}
		sort.Strings(list)
		out[ticker] = list
	}
	return out
}

// Dimensions returns the fixed embedding dimension, 0 before the first upsert.
func (s *IndexStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Close is a no-op.
func (s *IndexStore) Close() error {
	return nil
}
