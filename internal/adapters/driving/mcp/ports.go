package mcp

import (
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval backs the search tool.
	Retrieval driving.RetrievalService

	// Answer backs the ask tool. When nil the tool is not offered.
	Answer driving.AnswerService

	// Index backs the availability and document resources.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	// Answer and Index are optional; an assistant can still search.
	return nil
}
