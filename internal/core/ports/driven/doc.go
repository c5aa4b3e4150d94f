// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Parser: Turns a source file into pages of numbered lines
//   - ParserRegistry: Selects a parser by file extension
//   - IndexStore: Chunk persistence and filtered nearest-neighbour search
//   - DocumentStore: Indexed document summaries
//   - EmbeddingService: Generates vector embeddings. Retrieval is impossible without it.
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Chat completion. Without it, only search works.
//   - ResultStore: Evaluation result persistence. Without it, runs cannot resume.
//   - TokenCounter: Local token counting when a provider omits usage.
//   - Metrics: Counters and histograms. A no-op is used when nil.
//   - PromptStore: Editable prompts. Built-in defaults are used when nil.
//
// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven
