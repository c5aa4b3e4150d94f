package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/services"
)

// queryFlags are shared by ask and search.
type queryFlags struct {
	tickers []string
	period  string
	topK    int
	json    bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.tickers, "ticker", "t", nil, "restrict to these tickers (repeatable or comma separated)")
	cmd.Flags().StringVarP(&f.period, "period", "p", "", "restrict to one period, e.g. Q3-2025 or FY-2024")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", domain.DefaultTopK, "number of chunks to retrieve")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func (f *queryFlags) query(question string) domain.Query {
	return domain.Query{
		Question: question,
		Tickers:  f.tickers,
		Period:   f.period,
		TopK:     f.topK,
	}
}

var (
	askFlags queryFlags
	askModel string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with citations",
	Long: `Retrieves the most relevant filing excerpts, asks the configured model to
answer from them, and attributes each sentence of the answer to the page and
line range it came from.

Tickers and periods mentioned in the question are applied as filters, e.g.
  finsight ask "What was AMZN net sales in Q3 2025?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askFlags.register(askCmd)
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model alias or provider id (default: configured LLM model)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errNotConfigured("answer service")
	}

	q := askFlags.query(strings.Join(args, " "))
	q.Model = askModel

	answer, err := answerService.Ask(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if askFlags.json {
		return outputAnswerJSON(cmd, answer)
	}
	outputAnswerText(cmd, answer)
	return nil
}

// citationJSON is the wire form of a citation.
type citationJSON struct {
	Source string  `json:"source"`
	Ticker string  `json:"ticker,omitempty"`
	Period string  `json:"period,omitempty"`
	Page   int     `json:"page"`
	Lines  string  `json:"lines"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	URL    string  `json:"url,omitempty"`
}

// answerJSON is the wire form of an answer.
type answerJSON struct {
	Answer       string              `json:"answer"`
	Model        string              `json:"model,omitempty"`
	Citations    []citationJSON      `json:"citations"`
	Uncited      []string            `json:"uncited,omitempty"`
	Usage        domain.Usage        `json:"usage"`
	Availability map[string][]string `json:"availability,omitempty"`
}

// AnswerToJSON converts an answer to its wire form. Citations keep their
// per-sentence ranking.
func AnswerToJSON(a *domain.Answer) any {
	out := answerJSON{
		Answer:       a.Text,
		Model:        a.Model,
		Citations:    make([]citationJSON, 0, len(a.Citations)),
		Usage:        a.Usage,
		Availability: a.Availability,
	}
	for _, c := range a.Citations {
		out.Citations = append(out.Citations, citationJSON{
			Source: c.Source,
			Ticker: c.Ticker,
			Period: c.Period,
			Page:   c.Page,
			Lines:  c.Lines(),
			Text:   c.Excerpt,
			Score:  c.Score,
			URL:    c.URL,
		})
	}
	for _, g := range a.Gaps {
		out.Uncited = append(out.Uncited, g.Sentence)
	}
	return out
}

func outputAnswerJSON(cmd *cobra.Command, a *domain.Answer) error {
	data, err := json.MarshalIndent(AnswerToJSON(a), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, a *domain.Answer) {
	cmd.Println(a.Text)

	if len(a.Context) == 0 && a.Availability != nil {
		return
	}

	if len(a.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		seen := make(map[string]int)
		for _, c := range a.Citations {
			if _, ok := seen[c.ChunkID]; ok {
				continue
			}
			seen[c.ChunkID] = len(seen) + 1
			cmd.Printf("  [%d] %s p.%d lines %s (%.2f)\n", seen[c.ChunkID], c.Source, c.Page, c.Lines(), c.Score)
			if c.URL != "" {
				cmd.Printf("      %s\n", c.URL)
			}
		}
	}

	if len(a.Gaps) > 0 {
		cmd.Printf("\n%d sentence(s) could not be attributed to a source.\n", len(a.Gaps))
	}

	cmd.Println()
	cmd.Printf("Model: %s  Tokens: %d in / %d out  Cost: %s\n",
		a.Model, a.Usage.InputTokens, a.Usage.OutputTokens, services.FormatCost(a.Usage.Cost))
}
