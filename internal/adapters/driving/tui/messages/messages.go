// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// QuestionChanged is sent when the question input changes.
type QuestionChanged struct {
	Question string
}

// AnswerRequested is a command to answer a question.
type AnswerRequested struct {
	Query domain.Query
}

// AnswerCompleted carries a generated answer back to the model.
type AnswerCompleted struct {
	Answer *domain.Answer
	Err    error
}

// CitationSelected is sent when a citation is selected.
type CitationSelected struct {
	Index int
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAsk is the question input and cited answer view.
	ViewAsk
	// ViewDocuments lists indexed filings.
	ViewDocuments
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAsk:
		return "ask"
	case ViewDocuments:
		return "documents"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries the indexed documents.
type DocumentsLoaded struct {
	Documents []domain.DocumentRecord
	Err       error
}

// DocumentDeleted signals a document and its chunks were removed.
type DocumentDeleted struct {
	ID     string
	Chunks int
	Err    error
}

// EvalProgressed reports one finished (model, case) unit of a run.
type EvalProgressed struct {
	Progress driving.EvalProgress
}

// EvalFinished carries the outcome of a run.
type EvalFinished struct {
	Run *driving.EvalRun
	Err error
}
