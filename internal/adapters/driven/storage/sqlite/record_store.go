package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, ticker, period, filing_type, title, source_file, source_url,
	pages, chunks, indexed_at`

// SaveDocument stores or updates a document record.
func (s *documentStore) SaveDocument(ctx context.Context, rec *domain.DocumentRecord) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticker = excluded.ticker,
			period = excluded.period,
			filing_type = excluded.filing_type,
			title = excluded.title,
			source_file = excluded.source_file,
			source_url = excluded.source_url,
			pages = excluded.pages,
			chunks = excluded.chunks,
			indexed_at = excluded.indexed_at
	`, rec.ID, rec.Ticker, domain.NormalisePeriod(rec.Period), rec.FilingType, rec.Title,
		rec.SourceFile, rec.SourceURL, rec.Pages, rec.Chunks, unixNano(rec.IndexedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a record by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	var rec domain.DocumentRecord
	var indexedAt int64
	if err := row.Scan(&rec.ID, &rec.Ticker, &rec.Period, &rec.FilingType, &rec.Title,
		&rec.SourceFile, &rec.SourceURL, &rec.Pages, &rec.Chunks, &indexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	rec.IndexedAt = fromUnixNano(indexedAt)
	return &rec, nil
}

// ListDocuments returns records matching filter ordered by ticker, period, id.
func (s *documentStore) ListDocuments(ctx context.Context, filter domain.Filter) ([]domain.DocumentRecord, error) {
	where, args := filterClause(filter, "ticker", "period")
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents"+where+" ORDER BY ticker, period, id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.DocumentRecord{}
	for rows.Next() {
		var rec domain.DocumentRecord
		var indexedAt int64
		if err := rows.Scan(&rec.ID, &rec.Ticker, &rec.Period, &rec.FilingType, &rec.Title,
			&rec.SourceFile, &rec.SourceURL, &rec.Pages, &rec.Chunks, &indexedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		rec.IndexedAt = fromUnixNano(indexedAt)
		docs = append(docs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a record.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ==================== Result Store ====================

// resultStore implements driven.ResultStore. Each result is stored as a
// JSON payload keyed by (run, model, case) so a resumed run overwrites
// earlier attempts.
type resultStore struct {
	store *Store
}

var _ driven.ResultStore = (*resultStore)(nil)

// SaveResult stores or replaces a result.
func (s *resultStore) SaveResult(ctx context.Context, result *domain.EvalResult) error {
	if strings.TrimSpace(result.RunID) == "" {
		return fmt.Errorf("save result: %w: missing run id", domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO eval_results (run_id, model, case_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, model, case_id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, result.RunID, result.Model, result.CaseID, string(payload), unixNano(result.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// ListResults returns the results of a run ordered by model, then case.
func (s *resultStore) ListResults(ctx context.Context, runID string) ([]domain.EvalResult, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT payload FROM eval_results WHERE run_id = ? ORDER BY model, case_id", runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	results := []domain.EvalResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		var r domain.EvalResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// ListRuns returns run ids ordered by their latest result, most recent first.
func (s *resultStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id FROM eval_results
		GROUP BY run_id
		ORDER BY MAX(created_at) DESC, run_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
