// Package plaintext parses plain text filings and call transcripts.
// A form feed starts a new page; line numbers match the file's lines.
package plaintext

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Parser = (*Normaliser)(nil)

// maxLineBytes bounds a single line; longer lines are an error.
const maxLineBytes = 1 << 20

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns the parser name.
func (n *Normaliser) Name() string {
	return "plaintext"
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".text", ".txt"}
}

// Parse splits the text into pages at form feeds. Within a page every
// line is kept, blank ones included, so line numbers stay aligned with
// the source. Trailing blank lines of a page are dropped.
func (n *Normaliser) Parse(ctx context.Context, r io.ReaderAt, size int64, meta domain.DocumentMeta) (*domain.Document, error) {
	scanner := bufio.NewScanner(io.NewSectionReader(r, 0, size))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var pages []domain.Page
	var current []string
	number := 1

	flush := func() {
		for len(current) > 0 && strings.TrimSpace(current[len(current)-1]) == "" {
			current = current[:len(current)-1]
		}
		if len(current) > 0 {
			pages = append(pages, domain.NewPage(number, current))
		}
		current = nil
		number++
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimRight(scanner.Text(), " \t\r")
		parts := strings.Split(line, "\f")
		for i, part := range parts {
			if i > 0 {
				flush()
			}
			if i == 0 || part != "" {
				current = append(current, strings.TrimRight(part, " \t"))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()

	title := meta.Title
	if title == "" {
		title = firstLine(pages)
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

// firstLine returns the first non-blank line of the document.
func firstLine(pages []domain.Page) string {
	for _, p := range pages {
		for _, l := range p.Lines {
			if t := strings.TrimSpace(l.Text); t != "" {
				return t
			}
		}
	}
	return ""
}
