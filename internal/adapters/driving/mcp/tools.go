package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string   `json:"query" jsonschema:"the question or keywords to search filings for"`
	Tickers []string `json:"tickers,omitempty" jsonschema:"restrict to these ticker symbols, e.g. AMZN"`
	Period  string   `json:"period,omitempty" jsonschema:"restrict to one reporting period, e.g. Q3-2025 or FY-2024"`
	TopK    int      `json:"top_k,omitempty" jsonschema:"maximum number of excerpts to return (default 8)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput is one retrieved filing excerpt.
type ChunkOutput struct {
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

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string   `json:"question" jsonschema:"the question to answer from indexed filings"`
	Tickers  []string `json:"tickers,omitempty" jsonschema:"restrict to these ticker symbols"`
	Period   string   `json:"period,omitempty" jsonschema:"restrict to one reporting period"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"number of excerpts given to the model (default 8)"`
	Model    string   `json:"model,omitempty" jsonschema:"model alias or provider id"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string              `json:"answer"`
	Citations    []CitationOutput    `json:"citations"`
	Uncited      []string            `json:"uncited,omitempty"`
	Usage        UsageOutput         `json:"usage"`
	Availability map[string][]string `json:"availability,omitempty"`
}

// CitationOutput attributes an answer sentence to a page and line range.
type CitationOutput struct {
	Sentence int     `json:"sentence"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Lines    string  `json:"lines"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	URL      string  `json:"url,omitempty"`
}

// UsageOutput is the token and cost accounting of an answer.
type UsageOutput struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed financial filings and return the most relevant excerpts with page and line numbers",
	}, s.handleSearch)

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from indexed financial filings, citing the page and line range of each claim",
		}, s.handleAsk)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	res, err := s.ports.Retrieval.Retrieve(ctx, query(input.Query, input.Tickers, input.Period, input.TopK))
	if err != nil {
		return nil, SearchOutput{}, toolError("search", err)
	}

	output := SearchOutput{
		Results: make([]ChunkOutput, len(res.Chunks)),
		Count:   len(res.Chunks),
	}

	for i := range res.Chunks {
		c := &res.Chunks[i]
		output.Results[i] = ChunkOutput{
			DocumentID: c.DocumentID,
			Ticker:     strings.ToUpper(c.Ticker),
			Period:     c.Period,
			Source:     c.SourceFile,
			Page:       c.Page,
			Lines:      fmt.Sprintf("%d-%d", c.StartLine, c.EndLine),
			Section:    c.Section,
			Text:       c.Text,
			Similarity: c.Similarity,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	q := query(input.Question, input.Tickers, input.Period, input.TopK)
	q.Model = input.Model

	answer, err := s.ports.Answer.Ask(ctx, q)
	if err != nil {
		return nil, AskOutput{}, toolError("ask", err)
	}

	output := AskOutput{
		Answer:    answer.Text,
		Citations: make([]CitationOutput, len(answer.Citations)),
		Usage: UsageOutput{
			InputTokens:  answer.Usage.InputTokens,
			OutputTokens: answer.Usage.OutputTokens,
			Cost:         answer.Usage.Cost,
		},
		Availability: answer.Availability,
	}
	for i, c := range answer.Citations {
		output.Citations[i] = CitationOutput{
			Sentence: c.SentenceIndex,
			Source:   c.Source,
			Page:     c.Page,
			Lines:    c.Lines(),
			Text:     c.Excerpt,
			Score:    c.Score,
			URL:      c.URL,
		}
	}
	for _, g := range answer.Gaps {
		output.Uncited = append(output.Uncited, g.Sentence)
	}

	return nil, output, nil
}

// query builds a retrieval query, defaulting top-k.
func query(question string, tickers []string, period string, topK int) domain.Query {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	return domain.Query{
		Question: question,
		Tickers:  tickers,
		Period:   period,
		TopK:     topK,
	}
}

// toolError prefixes err with its kind so assistants can tell bad input
// from provider or index failures.
func toolError(tool string, err error) error {
	return fmt.Errorf("%s failed [%s]: %w", tool, domain.KindOf(err), err)
}
