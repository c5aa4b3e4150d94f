package driven

import "context"

// LLMService performs chat completions against a hosted or local model.
//
// Implementations may include:
//   - OpenAI (GPT-4.1)
//   - Anthropic (Claude)
//   - OpenRouter (any vendor behind one API)
//   - Ollama (local models)
type LLMService interface {
	// Complete runs a chat completion. An empty req.Model uses the
	// service's default model.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// ModelName returns the default model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest configures one chat completion.
type CompletionRequest struct {
	// Model is the provider model id. Empty means the service default.
	Model string

	// Messages is the conversation, system message first.
	Messages []ChatMessage

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the result of a chat completion.
type Completion struct {
	// Text is the generated message.
	Text string

	// Model is the model that actually answered, as reported by the provider.
	Model string

	// Usage is the provider-reported token usage. Zero when not reported.
	Usage TokenUsage

	// FinishReason is the provider stop reason (e.g. "stop", "length").
	FinishReason string
}

// TokenUsage is provider-reported token accounting.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// IsZero reports whether the provider reported no usage.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}

// StatusError is implemented by provider errors that carry an HTTP status.
// Retry policy uses it to tell transient failures from permanent ones.
type StatusError interface {
	error
	StatusCode() int
}
