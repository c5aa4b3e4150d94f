package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParsePeriod tests period extraction from free text
func TestParsePeriod(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"What was revenue in Q3 2025?", "Q3-2025", true},
		{"q1-2024 margins", "Q1-2024", true},
		{"Amazon_Q2_2025.pdf", "Q2-2025", true},
		{"Q4 FY2024 guidance", "Q4-2024", true},
		{"results for 3Q25", "Q3-2025", true},
		{"2025 Q1 results", "Q1-2025", true},
		{"FY2024 capex", "FY-2024", true},
		{"fiscal year 2023 outlook", "FY-2023", true},
		{"Annual 2022 report", "FY-2022", true},
		{"FY24 revenue", "FY-2024", true},
		{"How did AWS grow?", "", false},
		{"Q5 2025", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParsePeriod(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNormalisePeriod tests canonicalisation of stored labels
func TestNormalisePeriod(t *testing.T) {
	assert.Equal(t, "Q3-2025", NormalisePeriod(" Q3 2025 "))
	assert.Equal(t, "Q3-2025", NormalisePeriod("Q3-2025"))
	assert.Equal(t, "FY-2024", NormalisePeriod("FY2024"))
	assert.Equal(t, "H1 2025", NormalisePeriod("H1 2025"))
	assert.Equal(t, "", NormalisePeriod("  "))
}
