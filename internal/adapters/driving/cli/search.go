package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

var searchFlags queryFlags

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed filings",
	Long: `Ranks indexed chunks by cosine similarity to the query embedding.
Ticker and period filters are applied before ranking, so they narrow the
candidate set rather than post-filter the top results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchFlags.register(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errNotConfigured("retrieval service")
	}

	res, err := retrievalService.Retrieve(cmd.Context(), searchFlags.query(strings.Join(args, " ")))
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if searchFlags.json {
		return outputSearchJSON(cmd, res)
	}
	outputSearchTable(cmd, res)
	return nil
}

// chunkJSON is the wire form of a retrieved chunk.
type chunkJSON struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Ticker     string  `json:"ticker"`
	Period     string  `json:"period"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Lines      string  `json:"lines"`
	Section    string  `json:"section,omitempty"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// RetrievalToJSON converts retrieved chunks to their wire form.
func RetrievalToJSON(res *domain.Retrieval) any {
	out := make([]chunkJSON, 0, len(res.Chunks))
	for i := range res.Chunks {
		c := &res.Chunks[i]
		out = append(out, chunkJSON{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Ticker:     strings.ToUpper(c.Ticker),
			Period:     c.Period,
			Source:     c.SourceFile,
			Page:       c.Page,
			Lines:      fmt.Sprintf("%d-%d", c.StartLine, c.EndLine),
			Section:    c.Section,
			Text:       c.Text,
			Similarity: c.Similarity,
		})
	}
	return out
}

func outputSearchJSON(cmd *cobra.Command, res *domain.Retrieval) error {
	data, err := json.MarshalIndent(RetrievalToJSON(res), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, res *domain.Retrieval) {
	if len(res.Chunks) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range res.Chunks {
		c := &res.Chunks[i]
		cmd.Printf("  [%d] %s %s  %s p.%d lines %d-%d (%.2f)\n",
			i+1, strings.ToUpper(c.Ticker), c.Period, c.SourceFile, c.Page, c.StartLine, c.EndLine, c.Similarity)
		cmd.Printf("      %s\n", snippet(c.Text, 160))
		cmd.Println()
	}
	if res.Dropped > 0 {
		cmd.Printf("%d result(s) below the similarity cutoff were omitted.\n", res.Dropped)
	}
}

// snippet collapses whitespace and truncates s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
