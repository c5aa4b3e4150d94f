package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/postprocessors"
	"github.com/custodia-labs/finsight/internal/postprocessors/chunker"
)

// mockDocumentStore implements driven.DocumentStore for testing.
type mockDocumentStore struct {
	mu      sync.Mutex
	records map[string]domain.DocumentRecord
	saveErr error
}

func newMockDocumentStore() *mockDocumentStore {
	return &mockDocumentStore{records: make(map[string]domain.DocumentRecord)}
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, rec *domain.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[rec.ID] = *rec
	return nil
}

func (m *mockDocumentStore) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *mockDocumentStore) ListDocuments(_ context.Context, _ domain.Filter) ([]domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DocumentRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// mockParserRegistry implements driven.ParserRegistry for testing.
type mockParserRegistry struct {
	doc *domain.Document
	err error
}

func (m *mockParserRegistry) ParseFile(_ context.Context, path string, meta domain.DocumentMeta) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc := *m.doc
	doc.ID = meta.ID
	doc.Ticker = meta.Ticker
	doc.Period = meta.Period
	doc.SourceFile = path
	return &doc, nil
}

func (m *mockParserRegistry) Register(_ driven.Parser) {}

func (m *mockParserRegistry) SupportedExtensions() []string {
	return []string{".txt"}
}

// lineDoc builds a one-page document with the given lines.
func lineDoc(id string, lines ...string) *domain.Document {
	return &domain.Document{
		ID:     id,
		Ticker: "AMZN",
		Period: "Q3 2025",
		Pages:  []domain.Page{domain.NewPage(1, lines)},
	}
}

// newTestIndexService chunks one line per chunk so tests can reason
// about chunk counts directly.
func newTestIndexService(embedder *mockEmbeddingService, index *mockIndexStore, docs *mockDocumentStore) *IndexService {
	pipeline := postprocessors.NewPipeline(chunker.New(chunker.WithWindowLines(1), chunker.WithOverlapLines(0)))
	var store driven.DocumentStore
	if docs != nil {
		store = docs
	}
	svc := NewIndexService(nil, pipeline, embedder, index, store, domain.EmbeddingSettings{BatchSize: 2, Concurrency: 2})
	svc.SetRetryPolicy(fastRetry())
	return svc
}

func TestIndexService_IndexDocument(t *testing.T) {
	embedder := &mockEmbeddingService{}
	index := newMockIndexStore()
	docs := newMockDocumentStore()
	metrics := &mockMetrics{}
	svc := newTestIndexService(embedder, index, docs)
	svc.SetMetrics(metrics)

	report, err := svc.IndexDocument(context.Background(),
		lineDoc("amzn-q3", "Net sales", "Operating income", "Free cash flow", "AWS", "Advertising"))
	require.NoError(t, err)

	assert.Equal(t, "amzn-q3", report.DocumentID)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 5, report.Chunks)
	assert.Equal(t, 5, report.Embedded)
	assert.Equal(t, 0, report.Unchanged)
	assert.Equal(t, 3, embedder.batchCalls)
	assert.Equal(t, 5, index.chunkCount())
	assert.Equal(t, 5, metrics.indexed)

	for _, c := range index.chunks {
		assert.Equal(t, "amzn", c.Ticker)
		assert.Equal(t, "Q3-2025", c.Period)
		assert.Len(t, c.Embedding, 3)
	}

	rec, err := docs.GetDocument(context.Background(), "amzn-q3")
	require.NoError(t, err)
	assert.Equal(t, "AMZN", rec.Ticker)
	assert.Equal(t, "Q3-2025", rec.Period)
	assert.Equal(t, 5, rec.Chunks)
	assert.False(t, rec.IndexedAt.IsZero())
}

func TestIndexService_ReindexUnchanged(t *testing.T) {
	embedder := &mockEmbeddingService{}
	index := newMockIndexStore()
	svc := newTestIndexService(embedder, index, newMockDocumentStore())
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, lineDoc("d", "a", "b", "c"))
	require.NoError(t, err)
	calls := embedder.batchCalls

	report, err := svc.IndexDocument(ctx, lineDoc("d", "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 3, report.Unchanged)
	assert.Equal(t, 0, report.Removed)
	assert.Equal(t, calls, embedder.batchCalls, "unchanged content must not be re-embedded")
	assert.Equal(t, 3, index.chunkCount())
}

func TestIndexService_ReindexChanged(t *testing.T) {
	embedder := &mockEmbeddingService{}
	index := newMockIndexStore()
	svc := newTestIndexService(embedder, index, newMockDocumentStore())
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, lineDoc("d", "a", "b", "c"))
	require.NoError(t, err)

	report, err := svc.IndexDocument(ctx, lineDoc("d", "a", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 2, report.Removed)
	assert.Equal(t, 2, index.chunkCount())

	var texts []string
	for _, c := range index.chunks {
		texts = append(texts, c.Text)
	}
	sort.Strings(texts)
	assert.Equal(t, []string{"B", "a"}, texts)
}

func TestIndexService_Validation(t *testing.T) {
	embedder := &mockEmbeddingService{}
	svc := newTestIndexService(embedder, newMockIndexStore(), nil)

	doc := lineDoc("d", "a")
	doc.Ticker = ""
	_, err := svc.IndexDocument(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, embedder.calls)
}

func TestIndexService_EmbeddingRetried(t *testing.T) {
	embedder := &mockEmbeddingService{errs: []error{domain.ErrRateLimited}}
	index := newMockIndexStore()
	svc := newTestIndexService(embedder, index, nil)

	report, err := svc.IndexDocument(context.Background(), lineDoc("d", "a"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 2, embedder.calls)
}

func TestIndexService_EmbeddingFailure(t *testing.T) {
	embedder := &mockEmbeddingService{embedErr: errors.New("model not loaded")}
	index := newMockIndexStore()
	docs := newMockDocumentStore()
	svc := newTestIndexService(embedder, index, docs)

	_, err := svc.IndexDocument(context.Background(), lineDoc("d", "a", "b"))
	require.Error(t, err)
	assert.Equal(t, domain.KindProvider, domain.KindOf(err))
	assert.Equal(t, 0, index.chunkCount())
	assert.Empty(t, docs.records)
}

func TestIndexService_UpsertFailure(t *testing.T) {
	index := newMockIndexStore()
	index.upsertErr = errors.New("disk full")
	svc := newTestIndexService(&mockEmbeddingService{}, index, nil)

	_, err := svc.IndexDocument(context.Background(), lineDoc("d", "a"))
	require.Error(t, err)
	assert.Equal(t, domain.KindIndex, domain.KindOf(err))
}

func TestIndexService_NotConfigured(t *testing.T) {
	pipeline := postprocessors.NewPipeline(chunker.New())

	svc := NewIndexService(nil, pipeline, nil, newMockIndexStore(), nil, domain.EmbeddingSettings{})
	_, err := svc.IndexDocument(context.Background(), lineDoc("d", "a"))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	svc = NewIndexService(nil, pipeline, &mockEmbeddingService{}, nil, nil, domain.EmbeddingSettings{})
	_, err = svc.IndexDocument(context.Background(), lineDoc("d", "a"))
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	_, err = svc.IndexFile(context.Background(), "x.pdf", domain.DocumentMeta{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = svc.ListDocuments(context.Background(), domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestIndexService_IndexFile(t *testing.T) {
	parsers := &mockParserRegistry{doc: &domain.Document{Pages: []domain.Page{domain.NewPage(1, []string{"x", "y"})}}}
	index := newMockIndexStore()
	svc := newTestIndexService(&mockEmbeddingService{}, index, newMockDocumentStore())
	svc.parsers = parsers

	report, err := svc.IndexFile(context.Background(), "msft-fy24.txt",
		domain.DocumentMeta{ID: "msft-fy24", Ticker: "MSFT", Period: "FY 2024"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	for _, c := range index.chunks {
		assert.Equal(t, "msft-fy24.txt", c.SourceFile)
		assert.Equal(t, "FY-2024", c.Period)
	}

	parsers.err = domain.ErrUnsupportedType
	_, err = svc.IndexFile(context.Background(), "x.docx", domain.DocumentMeta{ID: "x", Ticker: "X"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestIndexService_IndexDocuments(t *testing.T) {
	index := newMockIndexStore()
	svc := newTestIndexService(&mockEmbeddingService{}, index, newMockDocumentStore())

	bad := lineDoc("bad", "a")
	bad.Ticker = ""
	reports := svc.IndexDocuments(context.Background(), []*domain.Document{
		lineDoc("one", "a", "b"),
		bad,
		lineDoc("two", "c"),
	})

	require.Len(t, reports, 3)
	assert.NoError(t, reports[0].Err)
	assert.Equal(t, 2, reports[0].Chunks)
	assert.ErrorIs(t, reports[1].Err, domain.ErrValidation)
	assert.Equal(t, "bad", reports[1].DocumentID)
	assert.NoError(t, reports[2].Err)
	assert.Equal(t, 3, index.chunkCount())
}

func TestIndexService_SameDocumentSerialised(t *testing.T) {
	index := newMockIndexStore()
	svc := newTestIndexService(&mockEmbeddingService{}, index, nil)

	const writers = 6
	var wg sync.WaitGroup
	reports := make([]int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r, err := svc.IndexDocument(context.Background(), lineDoc("d", "a", "b", "c"))
			if assert.NoError(t, err) {
				reports[n] = r.Embedded
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range reports {
		total += n
	}
	assert.Equal(t, 3, total, "each chunk should be embedded exactly once")
	assert.Equal(t, 3, index.chunkCount())
	assert.Equal(t, 0, svc.locks.size())
}

func TestIndexService_DeleteDocument(t *testing.T) {
	index := newMockIndexStore()
	docs := newMockDocumentStore()
	svc := newTestIndexService(&mockEmbeddingService{}, index, docs)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, lineDoc("d", "a", "b"))
	require.NoError(t, err)
	_, err = svc.IndexDocument(ctx, lineDoc("e", "c"))
	require.NoError(t, err)

	n, err := svc.DeleteDocument(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, index.chunkCount())

	recs, err := svc.ListDocuments(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e", recs[0].ID)

	n, err = svc.DeleteDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIndexService_Availability(t *testing.T) {
	index := newMockIndexStore()
	svc := newTestIndexService(&mockEmbeddingService{}, index, nil)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, lineDoc("d", "a"))
	require.NoError(t, err)

	avail, err := svc.Availability(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"AMZN": {"Q3-2025"}}, avail)

	index.availErr = errors.New("closed")
	_, err = svc.Availability(ctx)
	assert.Equal(t, domain.KindIndex, domain.KindOf(err))
}
