// Package milvus provides a driven.IndexStore backed by a Milvus collection.
//
// Chunks are stored one row per chunk with a float vector field indexed by
// HNSW under the cosine metric. Metadata filters are pushed into the search
// expression so they apply before ranking.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

const (
	// DefaultAddress is the default Milvus endpoint.
	DefaultAddress = "localhost:19530"

	// DefaultCollection is the default collection name.
	DefaultCollection = "finsight_chunks"

	// DefaultTimeout bounds connection setup.
	DefaultTimeout = 30 * time.Second

	// queryLimit caps rows returned by scalar queries.
	queryLimit = 16384
)

// Field names of the chunk collection.
const (
	fieldID         = "id"
	fieldDocumentID = "document_id"
	fieldTicker     = "ticker"
	fieldPeriod     = "period"
	fieldFilingType = "filing_type"
	fieldSourceFile = "source_file"
	fieldSourceURL  = "source_url"
	fieldSection    = "section"
	fieldContent    = "content"
	fieldPage       = "page"
	fieldStartLine  = "start_line"
	fieldEndLine    = "end_line"
	fieldPosition   = "position"
	fieldEmbedding  = "embedding"
)

// outputFields are returned by searches and queries.
var outputFields = []string{
	fieldID, fieldDocumentID, fieldTicker, fieldPeriod, fieldFilingType,
	fieldSourceFile, fieldSourceURL, fieldSection, fieldContent,
	fieldPage, fieldStartLine, fieldEndLine, fieldPosition,
}

// Config holds Milvus connection settings.
type Config struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string

	// Dimensions fixes the vector size. Zero adopts the size of the
	// existing collection or of the first upsert.
	Dimensions int

	Timeout time.Duration
}

// IndexStore is a Milvus-backed index.
type IndexStore struct {
	client     *milvusclient.Client
	collection string

	mu    sync.Mutex
	dims  int
	ready bool
}

// New connects to Milvus and inspects the collection if it already exists.
func New(ctx context.Context, cfg Config) (*IndexStore, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}

	s := &IndexStore{client: c, collection: cfg.Collection, dims: cfg.Dimensions}

	exists, err := c.HasCollection(connectCtx, milvusclient.NewHasCollectionOption(cfg.Collection))
	if err != nil {
		c.Close(ctx) //nolint:errcheck
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if exists {
		dims, err := s.describeDimensions(connectCtx)
		if err != nil {
			c.Close(ctx) //nolint:errcheck
			return nil, err
		}
		if s.dims != 0 && s.dims != dims {
			c.Close(ctx) //nolint:errcheck
			return nil, fmt.Errorf("collection %s: %w: got %d, want %d",
				cfg.Collection, domain.ErrDimensionMismatch, dims, s.dims)
		}
		s.dims = dims
		if err := s.load(connectCtx); err != nil {
			c.Close(ctx) //nolint:errcheck
			return nil, err
		}
		s.ready = true
	}

	logger.Debug("milvus: connected to %s collection=%s dims=%d", cfg.Address, cfg.Collection, s.dims)
	return s, nil
}

// describeDimensions reads the vector size of the existing collection.
func (s *IndexStore) describeDimensions(ctx context.Context) (int, error) {
	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return 0, fmt.Errorf("describe collection: %w", err)
	}
	if coll.Schema != nil {
		for _, f := range coll.Schema.Fields {
			if f.Name == fieldEmbedding {
				return strconv.Atoi(f.TypeParams["dim"])
			}
		}
	}
	return 0, fmt.Errorf("describe collection: %w: no %s field", domain.ErrIndex, fieldEmbedding)
}

// ensureCollection creates, indexes and loads the collection on first use.
// Caller holds mu.
func (s *IndexStore) ensureCollection(ctx context.Context) error {
	if s.ready {
		return nil
	}

	if err := s.client.CreateCollection(ctx,
		milvusclient.NewCreateCollectionOption(s.collection, collectionSchema(s.collection, s.dims))); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
	task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, fieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for index creation: %w", err)
	}

	if err := s.load(ctx); err != nil {
		return err
	}
	s.ready = true
	logger.Info("milvus: created collection %s (%d dims)", s.collection, s.dims)
	return nil
}

func (s *IndexStore) load(ctx context.Context) error {
	task, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for collection loading: %w", err)
	}
	return nil
}

// collectionSchema describes one row per chunk keyed by chunk id.
func collectionSchema(name string, dims int) *entity.Schema {
	varchar := func(n string, maxLen int64) *entity.Field {
		return entity.NewField().WithName(n).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxLen)
	}
	int64Field := func(n string) *entity.Field {
		return entity.NewField().WithName(n).WithDataType(entity.FieldTypeInt64)
	}

	return entity.NewSchema().
		WithName(name).
		WithDescription("finsight disclosure chunks").
		WithAutoID(false).
		WithField(varchar(fieldID, 64).WithIsPrimaryKey(true)).
		WithField(varchar(fieldDocumentID, 256)).
		WithField(varchar(fieldTicker, 16)).
		WithField(varchar(fieldPeriod, 32)).
		WithField(varchar(fieldFilingType, 32)).
		WithField(varchar(fieldSourceFile, 512)).
		WithField(varchar(fieldSourceURL, 2048)).
		WithField(varchar(fieldSection, 64)).
		WithField(varchar(fieldContent, 65535)).
		WithField(int64Field(fieldPage)).
		WithField(int64Field(fieldStartLine)).
		WithField(int64Field(fieldEndLine)).
		WithField(int64Field(fieldPosition)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dims)))
}

// checkBatch validates ids and dimensions of a batch and returns the
// dimension it implies.
func checkBatch(chunks []domain.Chunk, dims int) (int, error) {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" || c.DocumentID == "" {
			return 0, fmt.Errorf("upsert chunk %d: %w: missing id", i, domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) == 0 || len(c.Embedding) != dims {
			return 0, fmt.Errorf("upsert chunk %s: %w: got %d, want %d",
				c.ID, domain.ErrDimensionMismatch, len(c.Embedding), dims)
		}
	}
	return dims, nil
}

// chunkColumns converts a batch into insert columns.
func chunkColumns(chunks []domain.Chunk, dims int) []column.Column {
	n := len(chunks)
	ids := make([]string, n)
	docs := make([]string, n)
	tickers := make([]string, n)
	periods := make([]string, n)
	filings := make([]string, n)
	files := make([]string, n)
	urls := make([]string, n)
	sections := make([]string, n)
	texts := make([]string, n)
	pages := make([]int64, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	positions := make([]int64, n)
	vectors := make([][]float32, n)

	for i := range chunks {
		c := &chunks[i]
		ids[i] = c.ID
		docs[i] = c.DocumentID
		tickers[i] = domain.NormaliseTicker(c.Ticker)
		periods[i] = domain.NormalisePeriod(c.Period)
		filings[i] = c.FilingType
		files[i] = c.SourceFile
		urls[i] = c.SourceURL
		sections[i] = c.Section
		texts[i] = c.Text
		pages[i] = int64(c.Page)
		starts[i] = int64(c.StartLine)
		ends[i] = int64(c.EndLine)
		positions[i] = int64(c.Position)
		vectors[i] = c.Embedding
	}

	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldDocumentID, docs),
		column.NewColumnVarChar(fieldTicker, tickers),
		column.NewColumnVarChar(fieldPeriod, periods),
		column.NewColumnVarChar(fieldFilingType, filings),
		column.NewColumnVarChar(fieldSourceFile, files),
		column.NewColumnVarChar(fieldSourceURL, urls),
		column.NewColumnVarChar(fieldSection, sections),
		column.NewColumnVarChar(fieldContent, texts),
		column.NewColumnInt64(fieldPage, pages),
		column.NewColumnInt64(fieldStartLine, starts),
		column.NewColumnInt64(fieldEndLine, ends),
		column.NewColumnInt64(fieldPosition, positions),
		column.NewColumnFloatVector(fieldEmbedding, dims, vectors),
	}
}

// Upsert inserts or replaces chunks by id.
func (s *IndexStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := checkBatch(chunks, s.dims)
	if err != nil {
		return err
	}
	s.dims = dims
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	if _, err := s.client.Upsert(ctx,
		milvusclient.NewColumnBasedInsertOption(s.collection, chunkColumns(chunks, dims)...)); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	logger.Debug("milvus: upserted %d chunks", len(chunks))
	return nil
}

// state returns the dimension and whether the collection exists.
func (s *IndexStore) state() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims, s.ready
}

// Search runs a filtered ANN search and re-sorts the hits so ties follow
// document order.
func (s *IndexStore) Search(ctx context.Context, embedding []float32, filter domain.Filter, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	dims, ready := s.state()
	if !ready {
		return nil, nil
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("search: %w: got %d, want %d", domain.ErrDimensionMismatch, len(embedding), dims)
	}

	opt := milvusclient.NewSearchOption(s.collection, k, []entity.Vector{entity.FloatVector(embedding)}).
		WithANNSField(fieldEmbedding).
		WithSearchParam("ef", strconv.Itoa(max(64, k))).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(outputFields...)
	if !filter.IsEmpty() {
		opt = opt.WithFilter(filterExpr(filter))
	}

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	return scoredChunks(results[0].Fields, results[0].Scores)
}

// scoredChunks pairs decoded rows with their scores and orders them.
func scoredChunks(fields []column.Column, scores []float32) ([]domain.ScoredChunk, error) {
	chunks, err := decodeChunks(fields)
	if err != nil {
		return nil, err
	}
	if len(scores) < len(chunks) {
		return nil, fmt.Errorf("search chunks: %w: %d scores for %d rows", domain.ErrIndex, len(scores), len(chunks))
	}

	out := make([]domain.ScoredChunk, len(chunks))
	for i := range chunks {
		out[i] = domain.ScoredChunk{Chunk: chunks[i], Similarity: float64(scores[i])}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return domain.RankLess(&out[i], &out[j])
	})
	return out, nil
}

// decodeChunks reads rows out of result columns.
func decodeChunks(fields []column.Column) ([]domain.Chunk, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	n := fields[0].Len()
	chunks := make([]domain.Chunk, n)

	for _, col := range fields {
		if col.Len() != n {
			return nil, fmt.Errorf("decode chunks: %w: column %s has %d rows, want %d",
				domain.ErrIndex, col.Name(), col.Len(), n)
		}
		switch c := col.(type) {
		case *column.ColumnVarChar:
			data := c.Data()
			for i := range chunks {
				setString(&chunks[i], c.Name(), data[i])
			}
		case *column.ColumnInt64:
			data := c.Data()
			for i := range chunks {
				setInt(&chunks[i], c.Name(), int(data[i]))
			}
		}
	}
	return chunks, nil
}

func setString(c *domain.Chunk, name, v string) {
	switch name {
	case fieldID:
		c.ID = v
	case fieldDocumentID:
		c.DocumentID = v
	case fieldTicker:
		c.Ticker = v
	case fieldPeriod:
		c.Period = v
	case fieldFilingType:
		c.FilingType = v
	case fieldSourceFile:
		c.SourceFile = v
	case fieldSourceURL:
		c.SourceURL = v
	case fieldSection:
		c.Section = v
	case fieldContent:
		c.Text = v
	}
}

func setInt(c *domain.Chunk, name string, v int) {
	switch name {
	case fieldPage:
		c.Page = v
	case fieldStartLine:
		c.StartLine = v
	case fieldEndLine:
		c.EndLine = v
	case fieldPosition:
		c.Position = v
	}
}

// query runs a scalar query returning the named fields.
func (s *IndexStore) query(ctx context.Context, expr string, fields ...string) ([]column.Column, error) {
	rs, err := s.client.Query(ctx, milvusclient.NewQueryOption(s.collection).
		WithFilter(expr).
		WithLimit(queryLimit).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(fields...))
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	return rs.Fields, nil
}

// ChunkIDs returns the ids of a document's chunks, sorted.
func (s *IndexStore) ChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	if _, ready := s.state(); !ready {
		return []string{}, nil
	}
	fields, err := s.query(ctx, documentExpr(documentID), fieldID)
	if err != nil {
		return nil, err
	}
	ids := stringColumn(fields, fieldID)
	sort.Strings(ids)
	return ids, nil
}

// DeleteChunks removes chunks by id.
func (s *IndexStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, ready := s.state(); !ready {
		return nil
	}
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(idsExpr(ids))); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of a document.
func (s *IndexStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	ids, err := s.ChunkIDs(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.DeleteChunks(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Count returns the number of chunks matching filter.
func (s *IndexStore) Count(ctx context.Context, filter domain.Filter) (int, error) {
	if _, ready := s.state(); !ready {
		return 0, nil
	}
	rs, err := s.client.Query(ctx, milvusclient.NewQueryOption(s.collection).
		WithFilter(filterExpr(filter)).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields("count(*)"))
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	for _, col := range rs.Fields {
		if c, ok := col.(*column.ColumnInt64); ok && c.Len() > 0 {
			return int(c.Data()[0]), nil
		}
	}
	return 0, fmt.Errorf("count chunks: %w: no count column", domain.ErrIndex)
}

// Availability maps each uppercase ticker to its sorted periods.
func (s *IndexStore) Availability(ctx context.Context) (map[string][]string, error) {
	if _, ready := s.state(); !ready {
		return map[string][]string{}, nil
	}
	fields, err := s.query(ctx, matchAll, fieldTicker, fieldPeriod)
	if err != nil {
		return nil, err
	}
	return availability(stringColumn(fields, fieldTicker), stringColumn(fields, fieldPeriod)), nil
}

// availability groups parallel ticker/period columns.
func availability(tickers, periods []string) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for i := range tickers {
		if i >= len(periods) {
			break
		}
		t := strings.ToUpper(tickers[i])
		if seen[t] == nil {
			seen[t] = make(map[string]struct{})
		}
		seen[t][periods[i]] = struct{}{}
	}

	out := make(map[string][]string, len(seen))
	for t, ps := range seen {
		list := make([]string, 0, len(ps))
		for p := range ps {
			list = append(list, p)
		}
		sort.Strings(list)
		out[t] = list
	}
	return out
}

// stringColumn returns the data of a varchar column by name.
func stringColumn(fields []column.Column, name string) []string {
	for _, col := range fields {
		if c, ok := col.(*column.ColumnVarChar); ok && c.Name() == name {
			return c.Data()
		}
	}
	return []string{}
}

// Dimensions returns the vector size, 0 before the first upsert.
func (s *IndexStore) Dimensions() int {
	dims, _ := s.state()
	return dims
}

// Close releases the connection.
func (s *IndexStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}
