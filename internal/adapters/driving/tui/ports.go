// Package tui provides an interactive terminal user interface for finsight.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers questions with citations.
	Answer driving.AnswerService

	// Index lists and removes indexed filings.
	Index driving.IndexService

	// Eval runs evaluation sets.
	Eval driving.EvalService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(answer driving.AnswerService, index driving.IndexService) *Ports {
	return &Ports{
		Answer: answer,
		Index:  index,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Index == nil {
		return ErrMissingIndexService
	}
	return nil
}
