package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// highlightWords is how many leading words of an excerpt are used as the
// in-viewer search phrase.
const highlightWords = 24

// Citation links a sentence of a generated answer to the chunk that supports it.
// Citations are produced per answer and are not persisted by the core.
type Citation struct {
	// ChunkID identifies the supporting chunk.
	ChunkID string `json:"chunk_id"`

	// Source is the filename of the cited document.
	Source string `json:"source"`

	// Ticker and Period identify the cited document.
	Ticker string `json:"ticker,omitempty"`
	Period string `json:"period,omitempty"`

	// Page is the 1-based page number.
	Page int `json:"page"`

	// StartLine and EndLine bound the cited span (inclusive).
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Excerpt is the verbatim text of the cited lines.
	Excerpt string `json:"text"`

	// Score is the overlap score between the sentence and the chunk.
	Score float64 `json:"score"`

	// SentenceIndex is the 0-based index of the answer sentence being cited.
	SentenceIndex int `json:"sentence"`

	// URL points at the source page with a highlight fragment, when known.
	URL string `json:"url,omitempty"`
}

// Lines formats the cited line range, e.g. "12-15".
func (c Citation) Lines() string {
	if c.StartLine == c.EndLine {
		return fmt.Sprintf("%d", c.StartLine)
	}
	return fmt.Sprintf("%d-%d", c.StartLine, c.EndLine)
}

// CitationGap records an answer sentence that no context chunk supports
// above the overlap threshold. It is an outcome, not an error.
type CitationGap struct {
	// SentenceIndex is the 0-based index of the uncited sentence.
	SentenceIndex int `json:"sentence"`

	// Sentence is the uncited text.
	Sentence string `json:"text"`

	// BestScore is the highest score any context chunk reached.
	BestScore float64 `json:"best_score"`
}

// NewCitation builds a citation from a chunk record.
func NewCitation(c *Chunk, sentence int, score float64) Citation {
	return Citation{
		ChunkID:       c.ID,
		Source:        c.SourceFile,
		Ticker:        strings.ToUpper(c.Ticker),
		Period:        c.Period,
		Page:          c.Page,
		StartLine:     c.StartLine,
		EndLine:       c.EndLine,
		Excerpt:       c.Text,
		Score:         score,
		SentenceIndex: sentence,
		URL:           CitationURL(c.SourceURL, c.Page, c.Text),
	}
}

// NewSpanCitation cites lines start..end (inclusive) of a chunk, with the
// excerpt cut to those lines. A span outside the chunk, or a chunk whose
// text cannot be mapped back to its lines, cites the whole chunk.
func NewSpanCitation(c *Chunk, start, end, sentence int, score float64) Citation {
	cit := NewCitation(c, sentence, score)
	lines, ok := c.Lines()
	if !ok || start < c.StartLine || end > c.EndLine || start > end {
		return cit
	}
	cit.StartLine, cit.EndLine = start, end
	cit.Excerpt = strings.Join(lines[start-c.StartLine:end-c.StartLine+1], "\n")
	cit.URL = CitationURL(c.SourceURL, c.Page, cit.Excerpt)
	return cit
}

// HighlightPhrase returns the leading words of text used to locate the
// excerpt inside a document viewer.
func HighlightPhrase(text string) string {
	words := strings.Fields(text)
	if len(words) > highlightWords {
		words = words[:highlightWords]
	}
	return strings.Join(words, " ")
}

// CitationURL points a viewer at the cited page and phrase. PDF links
// get a "page=N&search=..." fragment (appended to any existing fragment);
// other links are returned unchanged. Returns "" when the source URL is unknown.
func CitationURL(sourceURL string, page int, excerpt string) string {
	if sourceURL == "" {
		return ""
	}
	base, _, _ := strings.Cut(sourceURL, "#")
	if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
		return sourceURL
	}

	var parts []string
	if page > 0 {
		parts = append(parts, fmt.Sprintf("page=%d", page))
	}
	if phrase := HighlightPhrase(excerpt); phrase != "" {
		parts = append(parts, "search="+strings.ReplaceAll(url.QueryEscape(phrase), "+", "%20"))
	}
	if len(parts) == 0 {
		return sourceURL
	}
	sep := "#"
	if strings.Contains(sourceURL, "#") {
		sep = "&"
	}
	return sourceURL + sep + strings.Join(parts, "&")
}
