package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswerSystem is the system prompt for grounded answer generation.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptJudgeRubric instructs the judge model how to score an answer.
	// The template must contain each of the Placeholder* markers below.
	PromptJudgeRubric = "judge_rubric"
)

// Named placeholders substituted into the judge rubric. Any other text,
// including a literal %, is passed through unchanged.
const (
	PlaceholderQuestion  = "{question}"
	PlaceholderReference = "{reference}"
	PlaceholderCandidate = "{candidate}"
)

// DefaultPrompts returns the built-in prompt templates keyed by name.
// File-backed stores seed user-editable copies from these, and services
// fall back to them when no store is configured.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnswerSystem: `You are a financial analysis assistant.
You are given context from official company documents (filings, press releases, and earnings call transcripts).
Answer the user's question using ONLY the provided context.
If the answer cannot be found in the context, say that you do not know and suggest which documents or periods might contain it.
Be precise with numbers and clearly state which company and period you are referring to.
When referencing information from the context, include the page number(s) from the source document (e.g., "as stated on page 5" or "according to page 12-13").`,

		PromptJudgeRubric: `You are grading an answer to a question about company financial disclosures.

Compare the candidate answer with the reference answer. Judge factual agreement:
numbers, units, periods and companies must match. Ignore style and length.
Penalise claims that contradict the reference. Partially correct answers get partial credit.

Question:
{question}

Reference answer:
{reference}

Candidate answer:
{candidate}

Respond with ONLY a JSON object, no other text:
{"score": <number between 0 and 1>, "rationale": "<one or two sentences>"}`,
	}
}

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
