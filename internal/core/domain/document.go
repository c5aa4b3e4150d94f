package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a parsed financial disclosure.
// It is immutable once ingested; pages and lines are never renumbered.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Ticker is the company symbol the document belongs to (e.g. "AMZN").
	Ticker string

	// Period is the reporting period label (e.g. "Q3 2025", "FY2024").
	Period string

	// FilingType is the kind of disclosure (e.g. "10-Q", "transcript").
	FilingType string

	// Title is the human-readable title.
	Title string

	// SourceFile is the filename the document was parsed from.
	SourceFile string

	// SourceURL is the public location of the original, if known.
	SourceURL string

	// Pages holds the document text in reading order.
	Pages []Page
}

// Page is a single page of a document.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Lines holds the page text in reading order.
	Lines []Line
}

// Line is a single line of text on a page.
type Line struct {
	// Number is the 1-based line number within the page.
	Number int

	// Text is the line content.
	Text string
}

// DocumentMeta carries the caller-supplied attributes a parser cannot infer
// from file content alone.
type DocumentMeta struct {
	ID         string
	Ticker     string
	Period     string
	FilingType string
	Title      string
	SourceURL  string
}

// Validate checks the structural invariants of a document: identity and
// ticker are present, page numbers increase, and line numbers within each
// page are contiguous starting at 1.
func (d *Document) Validate() error {
	if d == nil {
		return NewValidationError("document is nil")
	}
	if strings.TrimSpace(d.ID) == "" {
		return NewValidationError("document id is required")
	}
	if strings.TrimSpace(d.Ticker) == "" {
		return NewValidationError("document %s: ticker is required", d.ID)
	}

	prev := 0
	for _, page := range d.Pages {
		if page.Number <= prev {
			return NewValidationError("document %s: page %d out of order", d.ID, page.Number)
		}
		prev = page.Number
		for i, line := range page.Lines {
			if line.Number != i+1 {
				return NewValidationError("document %s: page %d line %d is not contiguous",
					d.ID, page.Number, line.Number)
			}
		}
	}
	return nil
}

// LineCount returns the total number of lines across all pages.
func (d *Document) LineCount() int {
	n := 0
	for _, page := range d.Pages {
		n += len(page.Lines)
	}
	return n
}

// NewPage builds a page from raw text lines, numbering them from 1.
func NewPage(number int, texts []string) Page {
	lines := make([]Line, len(texts))
	for i, text := range texts {
		lines[i] = Line{Number: i + 1, Text: text}
	}
	return Page{Number: number, Lines: lines}
}

// String returns a short identifying label for logs.
func (d *Document) String() string {
	return fmt.Sprintf("%s (%s %s, %d pages)", d.ID, d.Ticker, d.Period, len(d.Pages))
}

// DocumentRecord is the persisted summary of an indexed document.
// Page text lives only in its chunks.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Period     string    `json:"period"`
	FilingType string    `json:"filing_type,omitempty"`
	Title      string    `json:"title,omitempty"`
	SourceFile string    `json:"source_file"`
	SourceURL  string    `json:"source_url,omitempty"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Record summarises the document for persistence.
func (d *Document) Record(chunks int, indexedAt time.Time) DocumentRecord {
	return DocumentRecord{
		ID:         d.ID,
		Ticker:     strings.ToUpper(strings.TrimSpace(d.Ticker)),
		Period:     d.Period,
		FilingType: d.FilingType,
		Title:      d.Title,
		SourceFile: d.SourceFile,
		SourceURL:  d.SourceURL,
		Pages:      len(d.Pages),
		Chunks:     chunks,
		IndexedAt:  indexedAt,
	}
}
