package services

import (
	"fmt"
	"sort"
	"strings"
)

const noDataMessage = "I don't have any financial data available in my database yet."

// AvailabilityMessage explains why no context was found for a question and
// lists what is indexed. avail maps uppercase tickers to sorted periods.
// The message depends on whether the caller asked for tickers, whether
// any of them are indexed, and whether a period was requested.
func AvailabilityMessage(avail map[string][]string, tickers []string, period string) string {
	var b strings.Builder

	if len(tickers) == 0 {
		if len(avail) == 0 {
			return noDataMessage
		}
		b.WriteString("I don't have data for that specific query. Here's what's available:\n\n")
		writeAvailability(&b, avail, "")
		b.WriteString("\nPlease rephrase your question to specify one of the available tickers and periods.")
		return b.String()
	}

	requested := make([]string, 0, len(tickers))
	withData := make(map[string][]string)
	for _, t := range tickers {
		upper := strings.ToUpper(strings.TrimSpace(t))
		requested = append(requested, upper)
		if periods := avail[upper]; len(periods) > 0 {
			withData[upper] = periods
		}
	}
	tickerList := strings.Join(requested, ", ")

	if len(withData) == 0 {
		fmt.Fprintf(&b, "I don't have any data for %s.\n\n", tickerList)
		if len(avail) == 0 {
			b.WriteString(noDataMessage)
			return b.String()
		}
		b.WriteString("Available companies:\n")
		writeAvailability(&b, avail, "- ")
		b.WriteString("\nPlease ask about one of the available companies.")
		return b.String()
	}

	if period != "" {
		fmt.Fprintf(&b, "I don't have data for **%s** in period **%s**.\n\n", tickerList, period)
		b.WriteString("Available periods for your requested ticker(s):\n\n")
	} else {
		b.WriteString("I couldn't find relevant data for your query. Here's what's available:\n\n")
	}
	writeAvailability(&b, withData, "")
	b.WriteString("\nPlease rephrase your question using one of the available periods.")
	return b.String()
}

func writeAvailability(b *strings.Builder, avail map[string][]string, prefix string) {
	tickers := make([]string, 0, len(avail))
	for t := range avail {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		fmt.Fprintf(b, "%s**%s**: %s\n", prefix, t, strings.Join(avail[t], ", "))
	}
}
