package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Periods are stored in a canonical form: "Q3-2025" for quarters and
// "FY-2024" for fiscal years. Anything else is kept verbatim (trimmed).
var (
	quarterYearPattern  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])Q([1-4])\s*(?:FY)?\s*[-_/ ]?\s*((?:19|20)\d{2}|'?\d{2})(?:[^0-9]|$)`)
	yearQuarterPattern  = regexp.MustCompile(`(?i)(?:^|[^0-9])((?:19|20)\d{2})\s*[-_/ ]?\s*Q([1-4])(?:[^a-z0-9]|$)`)
	shortQuarterPattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])([1-4])Q\s*'?((?:19|20)\d{2}|\d{2})(?:[^0-9]|$)`)
	fiscalYearPattern   = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:FY|fiscal\s+year|annual)\s*[-_ ]?\s*'?((?:19|20)\d{2}|\d{2})(?:[^0-9]|$)`)
)

// NormalisePeriod returns the canonical form of a period label.
func NormalisePeriod(period string) string {
	period = strings.TrimSpace(period)
	if period == "" {
		return ""
	}
	if p, ok := ParsePeriod(period); ok {
		return p
	}
	return period
}

// ParsePeriod finds the first period mention in text and returns it in
// canonical form.
func ParsePeriod(text string) (string, bool) {
	if m := quarterYearPattern.FindStringSubmatch(text); m != nil {
		return "Q" + m[1] + "-" + fullYear(m[2]), true
	}
	if m := yearQuarterPattern.FindStringSubmatch(text); m != nil {
		return "Q" + m[2] + "-" + m[1], true
	}
	if m := shortQuarterPattern.FindStringSubmatch(text); m != nil {
		return "Q" + m[1] + "-" + fullYear(m[2]), true
	}
	if m := fiscalYearPattern.FindStringSubmatch(text); m != nil {
		return "FY-" + fullYear(m[1]), true
	}
	return "", false
}

// fullYear expands two-digit years into the 2000s.
func fullYear(y string) string {
	y = strings.TrimPrefix(y, "'")
	if len(y) == 4 {
		return y
	}
	n, err := strconv.Atoi(y)
	if err != nil {
		return y
	}
	return strconv.Itoa(2000 + n)
}
