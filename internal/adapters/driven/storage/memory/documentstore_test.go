package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func TestDocumentStore_SaveGetDelete(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	rec := &domain.DocumentRecord{ID: "AMZN_Q3-2025_10q", Ticker: "AMZN", Period: "Q3-2025", Pages: 42, Chunks: 180, IndexedAt: time.Now()}
	require.NoError(t, s.SaveDocument(ctx, rec))

	got, err := s.GetDocument(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 180, got.Chunks)

	rec.Chunks = 181
	require.NoError(t, s.SaveDocument(ctx, rec))
	got, err = s.GetDocument(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 181, got.Chunks)

	require.NoError(t, s.DeleteDocument(ctx, rec.ID))
	_, err = s.GetDocument(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, s.DeleteDocument(ctx, "missing"))
}

func TestDocumentStore_ListFiltersAndOrders(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	for _, rec := range []domain.DocumentRecord{
		{ID: "m", Ticker: "MSFT", Period: "Q3-2025"},
		{ID: "b", Ticker: "AMZN", Period: "Q3-2025"},
		{ID: "a", Ticker: "AMZN", Period: "Q3-2025"},
		{ID: "c", Ticker: "AMZN", Period: "Q2-2025"},
	} {
		rec := rec
		require.NoError(t, s.SaveDocument(ctx, &rec))
	}

	all, err := s.ListDocuments(ctx, domain.Filter{})
	require.NoError(t, err)
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "a", "b", "m"}, ids)

	q3, err := s.ListDocuments(ctx, domain.NewFilter([]string{"amzn"}, "Q3 2025"))
	require.NoError(t, err)
	assert.Len(t, q3, 2)
}
