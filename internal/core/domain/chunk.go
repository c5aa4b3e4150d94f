package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Chunk is a contiguous, page-scoped span of document lines used as the
// retrieval unit. Text is exactly the referenced lines joined by newlines.
type Chunk struct {
	// ID is the content-derived identifier (see NewChunkID).
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Ticker is stored lowercased so filters are case-insensitive.
	Ticker string

	// Period is the reporting period of the parent document.
	Period string

	// FilingType is the disclosure kind of the parent document.
	FilingType string

	// SourceFile is the filename of the parent document.
	SourceFile string

	// SourceURL is the public location of the parent document.
	SourceURL string

	// Page is the 1-based page the chunk was taken from.
	Page int

	// StartLine is the first line of the chunk (inclusive).
	StartLine int

	// EndLine is the last line of the chunk (inclusive).
	EndLine int

	// Text is the chunk content.
	Text string

	// Position is the ordinal position within the document in reading order.
	Position int

	// Section is an optional statement tag such as "balance_sheet".
	Section string

	// Embedding is the vector representation, owned by the index store.
	Embedding []float32
}

// ScoredChunk is a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk

	// Similarity is the cosine similarity to the query (higher is closer).
	Similarity float64
}

// NewChunkID derives a stable identifier from the document id, page,
// line range and content. Re-chunking identical content yields the same id.
func NewChunkID(documentID string, page, startLine, endLine int, text string) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(startLine)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(endLine)))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// LineRange formats the chunk's line span, e.g. "12-15" or "7".
func (c *Chunk) LineRange() string {
	if c.StartLine == c.EndLine {
		return strconv.Itoa(c.StartLine)
	}
	return strconv.Itoa(c.StartLine) + "-" + strconv.Itoa(c.EndLine)
}

// Lines splits the text back into the lines it was built from. ok is false
// when the text does not map one-to-one onto StartLine..EndLine.
func (c *Chunk) Lines() (lines []string, ok bool) {
	if c.StartLine <= 0 || c.EndLine < c.StartLine {
		return nil, false
	}
	lines = strings.Split(c.Text, "\n")
	if len(lines) != c.EndLine-c.StartLine+1 {
		return nil, false
	}
	return lines, true
}

// NormaliseTicker returns the canonical (lowercase, trimmed) form of a ticker.
func NormaliseTicker(ticker string) string {
	return strings.ToLower(strings.TrimSpace(ticker))
}

// DocumentOrderLess reports whether a precedes b in document reading order:
// page, then start line, then chunk id as a final stable key.
func DocumentOrderLess(a, b *Chunk) bool {
	if a.Page != b.Page {
		return a.Page < b.Page
	}
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.ID < b.ID
}

// RankLess orders scored chunks by descending similarity with ties broken
// by document order.
func RankLess(a, b *ScoredChunk) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return DocumentOrderLess(&a.Chunk, &b.Chunk)
}
