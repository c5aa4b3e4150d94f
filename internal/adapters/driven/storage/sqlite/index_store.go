package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// ==================== Index Store ====================

// indexStore implements driven.IndexStore with exact cosine scoring.
// The filter is pushed into SQL so only matching rows are scored.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

const chunkColumns = `id, document_id, ticker, period, filing_type, source_file, source_url,
	page, start_line, end_line, position, section, content, embedding`

// Upsert inserts or replaces chunks by id in a single transaction.
func (s *indexStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	dims := s.store.dims
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

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if s.store.dims == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO index_meta (key, value) VALUES ('dimensions', ?)", dims); err != nil {
			return fmt.Errorf("saving index dimensions: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			ticker = excluded.ticker,
			period = excluded.period,
			filing_type = excluded.filing_type,
			source_file = excluded.source_file,
			source_url = excluded.source_url,
			page = excluded.page,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			position = excluded.position,
			section = excluded.section,
			content = excluded.content,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, domain.NormaliseTicker(c.Ticker),
			domain.NormalisePeriod(c.Period), c.FilingType, c.SourceFile, c.SourceURL,
			c.Page, c.StartLine, c.EndLine, c.Position, c.Section, c.Text,
			float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.store.dims = dims
	return nil
}

// Search scores every chunk passing the filter and returns the k nearest.
func (s *indexStore) Search(ctx context.Context, embedding []float32, filter domain.Filter, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	s.store.mu.RLock()
	dims := s.store.dims
	s.store.mu.RUnlock()

	if dims == 0 {
		return nil, nil
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("search: %w: got %d, want %d", domain.ErrDimensionMismatch, len(embedding), dims)
	}

	where, args := filterClause(filter, "ticker", "period")
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows, dims)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredChunk{
			Chunk:      *chunk,
			Similarity: domain.CosineSimilarity(embedding, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return domain.RankLess(&results[i], &results[j])
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// GetChunk retrieves a chunk by ID.
func (s *indexStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	s.store.mu.RLock()
	dims := s.store.dims
	s.store.mu.RUnlock()

	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying chunk: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying chunk: %w", err)
		}
		return nil, domain.ErrNotFound
	}
	return scanChunk(rows, dims)
}

// ChunkIDs returns the ids of a document's chunks, sorted.
func (s *indexStore) ChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE document_id = ? ORDER BY id", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// DeleteChunks removes chunks by id.
func (s *indexStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE id IN ("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of a document.
func (s *indexStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting document chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	return int(n), nil
}

// Count returns the number of chunks matching filter.
func (s *indexStore) Count(ctx context.Context, filter domain.Filter) (int, error) {
	where, args := filterClause(filter, "ticker", "period")
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Availability maps each uppercase ticker to its sorted periods.
func (s *indexStore) Availability(ctx context.Context) (map[string][]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT DISTINCT ticker, period FROM chunks ORDER BY ticker, period")
	if err != nil {
		return nil, fmt.Errorf("querying availability: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var ticker, period string
		if err := rows.Scan(&ticker, &period); err != nil {
			return nil, fmt.Errorf("scanning availability: %w", err)
		}
		t := strings.ToUpper(ticker)
		out[t] = append(out[t], period)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating availability: %w", err)
	}
	return out, nil
}

// Close is a no-op; the owning Store closes the connection.
func (s *indexStore) Close() error {
	return nil
}

// scanChunk scans a chunk from *sql.Rows. A non-zero dims rejects
// embeddings of any other length.
func scanChunk(rows *sql.Rows, dims int) (*domain.Chunk, error) {
	var c domain.Chunk
	var embeddingBlob []byte

	if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ticker, &c.Period, &c.FilingType,
		&c.SourceFile, &c.SourceURL, &c.Page, &c.StartLine, &c.EndLine,
		&c.Position, &c.Section, &c.Text, &embeddingBlob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	if len(embeddingBlob)%4 != 0 {
		return nil, fmt.Errorf("chunk %s: %w: embedding blob of %d bytes is not a float32 vector",
			c.ID, domain.ErrIndex, len(embeddingBlob))
	}
	if dims > 0 && len(embeddingBlob)/4 != dims {
		return nil, fmt.Errorf("chunk %s: %w: embedding has %d dimensions, index has %d",
			c.ID, domain.ErrIndex, len(embeddingBlob)/4, dims)
	}
	c.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &c, nil
}
