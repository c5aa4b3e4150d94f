package domain

// Answer is the result of one question-answering turn.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`

	// Text is the generated answer.
	Text string `json:"answer"`

	// Citations are ranked per sentence by score.
	Citations []Citation `json:"citations"`

	// Gaps lists sentences that could not be attributed to any context chunk.
	Gaps []CitationGap `json:"uncited,omitempty"`

	// Context is the ranked chunk set shown to the model.
	Context []ScoredChunk `json:"-"`

	// Model is the provider model id that produced the answer.
	Model string `json:"model,omitempty"`

	// Usage is the token and cost accounting for the turn.
	Usage Usage `json:"usage"`

	// Filter is the filter retrieval actually applied after query parsing.
	Filter Filter `json:"-"`

	// Availability maps tickers to indexed periods; set only when no
	// context was found, so callers can suggest valid filters.
	Availability map[string][]string `json:"availability,omitempty"`
}

// Usage is the token and cost accounting of one or more provider calls.
type Usage struct {
	// InputTokens is the number of prompt tokens.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of completion tokens.
	OutputTokens int `json:"output_tokens"`

	// Cost is the computed cost in USD from the price table.
	Cost float64 `json:"cost"`

	// Estimated is true when token counts were computed locally because
	// the provider did not report them.
	Estimated bool `json:"estimated,omitempty"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		Cost:         u.Cost + o.Cost,
		Estimated:    u.Estimated || o.Estimated,
	}
}
