package plaintext

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func parse(t *testing.T, content string) *domain.Document {
	t.Helper()
	doc, err := New().Parse(context.Background(), strings.NewReader(content), int64(len(content)),
		domain.DocumentMeta{ID: "msft-q4", Ticker: "MSFT", Period: "Q4-2024", FilingType: "transcript"})
	require.NoError(t, err)
	return doc
}

func lines(p domain.Page) []string {
	out := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		out[i] = l.Text
	}
	return out
}

func TestNew(t *testing.T) {
	n := New()
	require.NotNil(t, n)
	assert.Equal(t, "plaintext", n.Name())
	assert.Contains(t, n.Extensions(), ".txt")
}

func TestParse_SinglePage(t *testing.T) {
	doc := parse(t, "Microsoft FY24 Q4 Earnings Call\n\nAmy Hood: Revenue was $64.7 billion.  \r\nUp 15%.\n\n\n")

	assert.Equal(t, "msft-q4", doc.ID)
	assert.Equal(t, "MSFT", doc.Ticker)
	assert.Equal(t, "transcript", doc.FilingType)
	assert.Equal(t, "Microsoft FY24 Q4 Earnings Call", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, []string{
		"Microsoft FY24 Q4 Earnings Call",
		"",
		"Amy Hood: Revenue was $64.7 billion.",
		"Up 15%.",
	}, lines(doc.Pages[0]))
	assert.NoError(t, doc.Validate())
}

func TestParse_FormFeeds(t *testing.T) {
	doc := parse(t, "page one\nmore\f\npage two\n\f\fpage four\fpage five")

	require.Len(t, doc.Pages, 4)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, []string{"page one", "more"}, lines(doc.Pages[0]))
	assert.Equal(t, 2, doc.Pages[1].Number)
	assert.Equal(t, []string{"page two"}, lines(doc.Pages[1]))
	assert.Equal(t, 4, doc.Pages[2].Number)
	assert.Equal(t, []string{"page four"}, lines(doc.Pages[2]))
	assert.Equal(t, 5, doc.Pages[3].Number)
	assert.Equal(t, []string{"page five"}, lines(doc.Pages[3]))
	assert.NoError(t, doc.Validate())
}

func TestParse_Empty(t *testing.T) {
	doc := parse(t, "")
	assert.Empty(t, doc.Pages)
	assert.Equal(t, "", doc.Title)

	doc = parse(t, "\n\n  \n")
	assert.Empty(t, doc.Pages)
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Parse(ctx, strings.NewReader("a\nb"), 3, domain.DocumentMeta{ID: "d", Ticker: "T"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_LineTooLong(t *testing.T) {
	long := strings.Repeat("x", maxLineBytes+1)
	_, err := New().Parse(context.Background(), strings.NewReader(long), int64(len(long)), domain.DocumentMeta{ID: "d", Ticker: "T"})
	assert.Error(t, err)
}
