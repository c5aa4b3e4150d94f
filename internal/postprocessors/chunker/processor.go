// Package chunker splits document pages into overlapping line windows.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// DefaultWindowLines is the default number of lines per chunk.
const DefaultWindowLines = 12

// DefaultOverlapLines is the default number of lines repeated from the
// end of one window at the start of the next.
const DefaultOverlapLines = 3

// DefaultMaxChars is the default character budget of a chunk.
const DefaultMaxChars = 2000

// Processor splits each page into windows of lines. Windows never cross a
// page and every line is covered by at least one chunk.
// It implements the PostProcessor interface.
type Processor struct {
	windowLines  int
	overlapLines int
	maxChars     int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithWindowLines sets the maximum number of lines per chunk.
func WithWindowLines(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.windowLines = n
		}
	}
}

// WithOverlapLines sets how many lines consecutive windows share.
func WithOverlapLines(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.overlapLines = n
		}
	}
}

// WithMaxChars sets the character budget of a chunk. A window is closed
// early when the next line would exceed it.
func WithMaxChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		windowLines:  DefaultWindowLines,
		overlapLines: DefaultOverlapLines,
		maxChars:     DefaultMaxChars,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for progress
	if p.overlapLines >= p.windowLines {
		p.overlapLines = p.windowLines - 1
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits every page of doc into chunks in reading order.
// Input chunks are ignored; this processor creates new chunks from the pages.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, w := range p.windows(page.Lines) {
			chunks = append(chunks, p.newChunk(doc, page, w, len(chunks)))
		}
	}

	return chunks, nil
}

// window is a half-open range of line indexes within a page.
type window struct {
	start, end int
}

// windows computes the line windows of one page.
func (p *Processor) windows(lines []domain.Line) []window {
	n := len(lines)
	if n == 0 {
		return nil
	}
	if isBlank(lines) {
		return []window{{0, n}}
	}

	var out []window
	for i := 0; i < n; {
		j := i
		size := 0
		for j < n && j-i < p.windowLines {
			add := len(lines[j].Text)
			if j > i {
				add++ // newline separator
				if size+add > p.maxChars {
					break
				}
			}
			size += add
			j++
		}
		out = append(out, window{i, j})
		if j >= n {
			break
		}

		next := j - p.overlapLines
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return out
}

func (p *Processor) newChunk(doc *domain.Document, page domain.Page, w window, position int) domain.Chunk {
	lines := page.Lines[w.start:w.end]
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	text := strings.Join(texts, "\n")
	start, end := lines[0].Number, lines[len(lines)-1].Number

	return domain.Chunk{
		ID:         domain.NewChunkID(doc.ID, page.Number, start, end, text),
		DocumentID: doc.ID,
		Ticker:     domain.NormaliseTicker(doc.Ticker),
		Period:     doc.Period,
		FilingType: doc.FilingType,
		SourceFile: doc.SourceFile,
		SourceURL:  doc.SourceURL,
		Page:       page.Number,
		StartLine:  start,
		EndLine:    end,
		Text:       text,
		Position:   position,
	}
}

func isBlank(lines []domain.Line) bool {
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			return false
		}
	}
	return true
}
