package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.Filter
		want   string
	}{
		{"empty", domain.Filter{}, `id != ""`},
		{"tickers", domain.NewFilter([]string{"MSFT", "amzn"}, ""), `ticker in ["amzn", "msft"]`},
		{"period", domain.NewFilter(nil, "Q3 2025"), `period == "Q3-2025"`},
		{"both", domain.NewFilter([]string{"nvda"}, "FY2024"), `ticker in ["nvda"] && period == "FY2024"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterExpr(tt.filter))
		})
	}
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, `"plain"`, quote("plain"))
	assert.Equal(t, `"a\"b"`, quote(`a"b`))
	assert.Equal(t, `"back\\slash"`, quote(`back\slash`))
	assert.Equal(t, `"two\nlines"`, quote("two\nlines"))
	assert.Equal(t, `document_id == "AMZN_Q3\"x"`, documentExpr(`AMZN_Q3"x`))
	assert.Equal(t, `id in ["a", "b"]`, idsExpr([]string{"a", "b"}))
}

func TestCheckBatch(t *testing.T) {
	ok := []domain.Chunk{
		{ID: "a", DocumentID: "d", Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d", Embedding: []float32{0, 1}},
	}

	dims, err := checkBatch(ok, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)

	_, err = checkBatch(ok, 3)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = checkBatch([]domain.Chunk{{ID: "a", Embedding: []float32{1}}}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = checkBatch([]domain.Chunk{{ID: "a", DocumentID: "d"}}, 0)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestChunkColumns_RoundTrip(t *testing.T) {
	in := []domain.Chunk{
		{ID: "a", DocumentID: "d", Ticker: "AMZN", Period: "Q3 2025", FilingType: "10-Q",
			SourceFile: "amzn.pdf", SourceURL: "https://x/amzn.pdf", Section: "income_statement",
			Page: 3, StartLine: 4, EndLine: 9, Position: 7, Text: "Net sales", Embedding: []float32{1, 0}},
	}

	cols := chunkColumns(in, 2)
	require.Len(t, cols, 14)

	var scalar []column.Column
	for _, c := range cols {
		if c.Name() != fieldEmbedding {
			scalar = append(scalar, c)
		} else {
			assert.Equal(t, entity.FieldTypeFloatVector, c.Type())
		}
	}

	out, err := decodeChunks(scalar)
	require.NoError(t, err)
	require.Len(t, out, 1)

	want := in[0]
	want.Ticker = "amzn"
	want.Period = "Q3-2025"
	want.Embedding = nil
	assert.Equal(t, want, out[0])
}

func TestScoredChunks_ReordersTiesByDocumentOrder(t *testing.T) {
	fields := []column.Column{
		column.NewColumnVarChar(fieldID, []string{"late", "early", "best"}),
		column.NewColumnVarChar(fieldTicker, []string{"amzn", "amzn", "msft"}),
		column.NewColumnInt64(fieldPage, []int64{5, 2, 9}),
		column.NewColumnInt64(fieldStartLine, []int64{1, 1, 1}),
	}

	out, err := scoredChunks(fields, []float32{0.8, 0.8, 0.9})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "best", out[0].ID)
	assert.Equal(t, "early", out[1].ID)
	assert.Equal(t, "late", out[2].ID)
	assert.InDelta(t, 0.9, out[0].Similarity, 1e-6)
}

func TestScoredChunks_Malformed(t *testing.T) {
	fields := []column.Column{column.NewColumnVarChar(fieldID, []string{"a", "b"})}
	_, err := scoredChunks(fields, []float32{0.5})
	assert.ErrorIs(t, err, domain.ErrIndex)

	ragged := []column.Column{
		column.NewColumnVarChar(fieldID, []string{"a", "b"}),
		column.NewColumnInt64(fieldPage, []int64{1}),
	}
	_, err = decodeChunks(ragged)
	assert.ErrorIs(t, err, domain.ErrIndex)

	empty, err := scoredChunks(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAvailability(t *testing.T) {
	got := availability(
		[]string{"amzn", "amzn", "msft", "amzn"},
		[]string{"Q3-2025", "Q2-2025", "Q3-2025", "Q3-2025"},
	)
	assert.Equal(t, map[string][]string{
		"AMZN": {"Q2-2025", "Q3-2025"},
		"MSFT": {"Q3-2025"},
	}, got)
}

func TestCollectionSchema(t *testing.T) {
	schema := collectionSchema("chunks", 1536)
	assert.Equal(t, "chunks", schema.CollectionName)

	var names []string
	for _, f := range schema.Fields {
		names = append(names, f.Name)
		if f.Name == fieldID {
			assert.True(t, f.PrimaryKey)
		}
		if f.Name == fieldEmbedding {
			assert.Equal(t, "1536", f.TypeParams["dim"])
		}
	}
	assert.Contains(t, names, fieldEmbedding)
	assert.Len(t, names, len(outputFields)+1)
}

func TestSearch_NoCollectionOrZeroK(t *testing.T) {
	s := &IndexStore{collection: "c"}

	res, err := s.Search(context.Background(), []float32{1}, domain.Filter{}, 0)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = s.Search(context.Background(), []float32{1}, domain.Filter{}, 5)
	require.NoError(t, err)
	assert.Nil(t, res, "no collection yet")

	s.ready, s.dims = true, 2
	_, err = s.Search(context.Background(), []float32{1}, domain.Filter{}, 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := (&IndexStore{}).Count(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
