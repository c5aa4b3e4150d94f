package domain

import (
	"regexp"
	"slices"
	"strings"
)

// DefaultTopK is the number of chunks retrieved when a query does not say.
const DefaultTopK = 8

// DefaultMaxTopK bounds the top-k a caller may request.
const DefaultMaxTopK = 50

// tickerPattern accepts symbols such as "AMZN", "BRK.B" or "RDS-A".
var tickerPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,9}$`)

// Query is a question plus the filters that scope retrieval.
type Query struct {
	// Question is the natural-language question.
	Question string

	// Tickers restricts retrieval to these companies. Empty means no restriction.
	Tickers []string

	// Period restricts retrieval to one reporting period. Empty means no restriction.
	Period string

	// TopK is the maximum number of chunks to retrieve.
	TopK int

	// Model optionally selects the chat model (alias or provider id).
	Model string
}

// Validate checks the query against the retriever boundary rules.
// maxTopK <= 0 falls back to DefaultMaxTopK.
func (q *Query) Validate(maxTopK int) error {
	if maxTopK <= 0 {
		maxTopK = DefaultMaxTopK
	}
	if strings.TrimSpace(q.Question) == "" {
		return NewValidationError("question is required")
	}
	if q.TopK <= 0 {
		return NewValidationError("top_k must be a positive integer, got %d", q.TopK)
	}
	if q.TopK > maxTopK {
		return NewValidationError("top_k %d exceeds maximum %d", q.TopK, maxTopK)
	}
	for _, t := range q.Tickers {
		if !ValidTicker(t) {
			return NewValidationError("invalid ticker %q", t)
		}
	}
	return nil
}

// Filter returns the metadata predicate for this query.
func (q *Query) Filter() Filter {
	return NewFilter(q.Tickers, q.Period)
}

// ValidTicker reports whether s looks like a ticker symbol.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(strings.TrimSpace(s))
}

// Filter is a metadata predicate over chunks: ticker in Tickers and
// period equal to Period. Empty fields do not restrict.
type Filter struct {
	// Tickers holds lowercased, de-duplicated, sorted tickers.
	Tickers []string

	// Period is in canonical form (see NormalisePeriod) and matched exactly.
	Period string
}

// NewFilter normalises tickers and period into a Filter.
func NewFilter(tickers []string, period string) Filter {
	var norm []string
	for _, t := range tickers {
		t = NormaliseTicker(t)
		if t != "" && !slices.Contains(norm, t) {
			norm = append(norm, t)
		}
	}
	slices.Sort(norm)
	return Filter{Tickers: norm, Period: NormalisePeriod(period)}
}

// Matches reports whether a chunk satisfies the filter.
func (f Filter) Matches(c *Chunk) bool {
	return f.MatchesMeta(c.Ticker, c.Period)
}

// MatchesMeta reports whether a ticker and period satisfy the filter.
func (f Filter) MatchesMeta(ticker, period string) bool {
	if len(f.Tickers) > 0 && !slices.Contains(f.Tickers, NormaliseTicker(ticker)) {
		return false
	}
	if f.Period != "" && NormalisePeriod(period) != f.Period {
		return false
	}
	return true
}

// IsEmpty reports whether the filter places no restriction.
func (f Filter) IsEmpty() bool {
	return len(f.Tickers) == 0 && f.Period == ""
}

// Retrieval is the ranked context retrieved for a query.
type Retrieval struct {
	// Query is the validated query with parsed filters applied.
	Query Query

	// Filter is the predicate that was applied.
	Filter Filter

	// Chunks are ranked by descending similarity, ties in document order.
	Chunks []ScoredChunk

	// Dropped counts candidates removed by the minimum-similarity cutoff.
	Dropped int
}
