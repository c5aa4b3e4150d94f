package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown parser, backend or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the chat-completion service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval is impossible without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the index store is not configured.
	ErrIndexUnavailable = errors.New("index store unavailable")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedResponse indicates a provider answered with something
	// that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error kinds. Each kind has a sentinel so callers can use errors.Is.
var (
	// ErrValidation marks malformed queries and eval cases. Never sent downstream.
	ErrValidation = errors.New("validation error")

	// ErrProvider marks embedding/chat/judge calls that failed after bounded retries.
	ErrProvider = errors.New("provider error")

	// ErrIndex marks an unavailable store or a corrupted chunk record.
	ErrIndex = errors.New("index error")

	// ErrGeneration marks an answer generation that exhausted its retries.
	ErrGeneration = errors.New("generation error")

	// ErrJudge marks a judge response that could not be parsed.
	ErrJudge = errors.New("judge error")
)

// ErrorKind classifies a failure for user-visible reporting.
type ErrorKind string

// Known error kinds.
const (
	KindValidation ErrorKind = "validation"
	KindProvider   ErrorKind = "provider"
	KindIndex      ErrorKind = "index"
	KindGeneration ErrorKind = "generation"
	KindJudge      ErrorKind = "judge"
	KindInternal   ErrorKind = "internal"

	// KindInterrupted marks eval pairs a cancelled run did not finish.
	// They carry no score and are never persisted, so a resumed run
	// evaluates them again.
	KindInterrupted ErrorKind = "interrupted"
)

// sentinel returns the errors.Is target for a kind.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindProvider:
		return ErrProvider
	case KindIndex:
		return ErrIndex
	case KindGeneration:
		return ErrGeneration
	case KindJudge:
		return ErrJudge
	default:
		return nil
	}
}

// Error is a structured failure: a kind, the operation that failed, and the cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// NewError wraps err with a kind and operation name. A nil err yields nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewValidationError formats a validation failure.
func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost structured error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
