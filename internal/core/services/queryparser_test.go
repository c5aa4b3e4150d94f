package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func TestParseQuery(t *testing.T) {
	known := []string{"AMZN", "MSFT", "BRK.B"}

	tests := []struct {
		name        string
		question    string
		wantTickers []string
		wantPeriod  string
	}{
		{"cashtag", "What did $tsla report?", []string{"TSLA"}, ""},
		{"known bare ticker", "How did AMZN do in Q3 2025?", []string{"AMZN"}, "Q3-2025"},
		{"unknown uppercase word ignored", "What was EPS for MSFT in FY2024?", []string{"MSFT"}, "FY-2024"},
		{"ticker with dot", "BRK.B float", []string{"BRK.B"}, ""},
		{"duplicates collapse", "$AMZN vs AMZN", []string{"AMZN"}, ""},
		{"nothing", "what is free cash flow?", nil, ""},
		{"short quarter", "AMZN 3Q25 margins", []string{"AMZN"}, "Q3-2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.question, known)
			assert.Equal(t, tt.wantTickers, got.Tickers)
			assert.Equal(t, tt.wantPeriod, got.Period)
		})
	}
}

func TestParseQuery_NoKnownTickers(t *testing.T) {
	got := ParseQuery("How did AMZN do?", nil)
	assert.Empty(t, got.Tickers)
}

func TestMergeQuery(t *testing.T) {
	q := domain.Query{Question: "q", Tickers: []string{"amzn"}, Period: "", TopK: 8}

	merged := MergeQuery(q, ParsedQuery{Tickers: []string{"AMZN", "MSFT"}, Period: "Q3-2025"})

	assert.Equal(t, []string{"amzn", "MSFT"}, merged.Tickers)
	assert.Equal(t, "Q3-2025", merged.Period)
	assert.Equal(t, []string{"amzn"}, q.Tickers, "input must not be mutated")
}

func TestMergeQuery_CallerPeriodWins(t *testing.T) {
	q := domain.Query{Question: "q", Period: "FY-2024", TopK: 8}

	merged := MergeQuery(q, ParsedQuery{Period: "Q3-2025"})

	assert.Equal(t, "FY-2024", merged.Period)
}
