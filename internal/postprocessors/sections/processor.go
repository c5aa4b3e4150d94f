// Package sections tags chunks with the financial statement they belong to.
package sections

import (
	"context"
	"regexp"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Section tags.
const (
	IncomeStatement    = "income_statement"
	BalanceSheet       = "balance_sheet"
	CashFlow           = "cash_flow"
	Revenue            = "revenue"
	SegmentInformation = "segment_information"
)

type rule struct {
	tag     string
	pattern *regexp.Regexp
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{IncomeStatement, regexp.MustCompile(`(?i)consolidated statements? of income`)},
	{BalanceSheet, regexp.MustCompile(`(?i)consolidated balance sheets?`)},
	{CashFlow, regexp.MustCompile(`(?i)consolidated statements? of cash flows`)},
	{Revenue, regexp.MustCompile(`(?i)\brevenue\b|\bsales\b`)},
	{SegmentInformation, regexp.MustCompile(`(?i)\bsegment\b`)},
}

// Processor sets Chunk.Section from the chunk text.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a section tagger.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sections"
}

// Process tags each chunk in place. Chunks that already carry a section
// keep it.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Section == "" {
			chunks[i].Section = Classify(chunks[i].Text)
		}
	}
	return chunks, nil
}

// Classify returns the section tag for text, or "" when none applies.
func Classify(text string) string {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.tag
		}
	}
	return ""
}
