// Package pdf parses PDF filings page by page. Each PDF page becomes a
// document page; text rows on the page become numbered lines.
package pdf

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Parser = (*Normaliser)(nil)

const (
	// maxTitleLength skips cover-page noise when picking a title.
	maxTitleLength = 200

	// wordGap is the horizontal gap, in multiples of the font size, that
	// separates two words within a row.
	wordGap = 0.15
)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns the parser name.
func (n *Normaliser) Name() string {
	return "pdf"
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".pdf"}
}

// Parse extracts the text rows of every page. Pages that fail to decode
// are logged and skipped; their numbers are not reused.
func (n *Normaliser) Parse(ctx context.Context, r io.ReaderAt, size int64, meta domain.DocumentMeta) (*domain.Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var pages []domain.Page
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := pageRows(page)
		if err != nil {
			logger.Warn("Skipping page %d of %s: %v", i, meta.ID, err)
			continue
		}
		if lines := trimBlank(rows); len(lines) > 0 {
			pages = append(pages, domain.NewPage(i, lines))
		}
	}
	logger.Debug("Parsed %d of %d pdf pages for %s", len(pages), total, meta.ID)

	title := meta.Title
	if title == "" {
		title = extractTitle(pages)
	}

	return &domain.Document{
		ID:         meta.ID,
		Ticker:     meta.Ticker,
		Period:     meta.Period,
		FilingType: meta.FilingType,
		Title:      title,
		SourceURL:  meta.SourceURL,
		Pages:      pages,
	}, nil
}

// pageRows returns the text rows of a page from top to bottom. The pdf
// library panics on some malformed content streams; that is reported as
// an error for the page.
func pageRows(page pdf.Page) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	lines = make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, joinRow(row.Content))
	}
	return lines, nil
}

// joinRow concatenates the text pieces of a row left to right, inserting
// a space where pieces are separated by a visible gap.
func joinRow(texts pdf.TextHorizontal) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	end := 0.0
	for i, t := range sorted {
		if i > 0 && t.X-end > wordGap*t.FontSize && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		end = t.X + t.W
	}
	return collapseSpaces(b.String())
}

// collapseSpaces trims the line and folds runs of spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimBlank drops leading and trailing blank lines.
func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// extractTitle uses the first reasonably short non-blank line.
func extractTitle(pages []domain.Page) string {
	for _, p := range pages {
		for _, l := range p.Lines {
			t := strings.TrimSpace(l.Text)
			if t != "" && len(t) <= maxTitleLength {
				return t
			}
		}
	}
	return ""
}
