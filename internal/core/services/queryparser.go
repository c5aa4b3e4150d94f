package services

import (
	"regexp"
	"slices"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

var (
	// cashtagPattern matches explicit mentions such as "$TSLA" or "$brk.b".
	cashtagPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9.\-]{0,9})\b`)

	// upperTokenPattern matches bare uppercase tokens that may be tickers.
	upperTokenPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9.]{0,9}\b`)
)

// ParsedQuery is what could be read from a question's text.
type ParsedQuery struct {
	Tickers []string
	Period  string
}

// ParseQuery extracts ticker and period mentions from a question.
// Cashtags are always taken; bare uppercase tokens only when they are
// in known, so words like "EPS" or "AI" are not mistaken for tickers.
func ParseQuery(question string, known []string) ParsedQuery {
	var parsed ParsedQuery

	add := func(t string) {
		t = strings.ToUpper(strings.TrimRight(t, "."))
		if domain.ValidTicker(t) && !slices.Contains(parsed.Tickers, t) {
			parsed.Tickers = append(parsed.Tickers, t)
		}
	}

	for _, m := range cashtagPattern.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}

	if len(known) > 0 {
		knownSet := make(map[string]struct{}, len(known))
		for _, k := range known {
			knownSet[strings.ToUpper(k)] = struct{}{}
		}
		for _, tok := range upperTokenPattern.FindAllString(question, -1) {
			if _, ok := knownSet[strings.TrimRight(tok, ".")]; ok {
				add(tok)
			}
		}
	}

	if p, ok := domain.ParsePeriod(question); ok {
		parsed.Period = p
	}
	return parsed
}

// MergeQuery applies parsed mentions to q: parsed tickers are added to the
// caller's tickers, and a parsed period is used only when the caller gave none.
func MergeQuery(q domain.Query, parsed ParsedQuery) domain.Query {
	merged := q
	merged.Tickers = slices.Clone(q.Tickers)
	for _, t := range parsed.Tickers {
		if !slices.ContainsFunc(merged.Tickers, func(s string) bool { return strings.EqualFold(s, t) }) {
			merged.Tickers = append(merged.Tickers, t)
		}
	}
	if strings.TrimSpace(merged.Period) == "" {
		merged.Period = parsed.Period
	}
	return merged
}
