// Package driving defines the use cases the CLI, TUI and MCP server call:
// asking questions, retrieving excerpts, indexing filings, running
// evaluations and editing settings.
//
// Implementations live in internal/core/services.
package driving
