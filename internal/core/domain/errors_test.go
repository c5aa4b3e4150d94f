package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrIndexUnavailable", ErrIndexUnavailable},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrMalformedResponse", ErrMalformedResponse},
		{"ErrValidation", ErrValidation},
		{"ErrProvider", ErrProvider},
		{"ErrIndex", ErrIndex},
		{"ErrGeneration", ErrGeneration},
		{"ErrJudge", ErrJudge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestNewError_Nil tests that wrapping nil yields nil
func TestNewError_Nil(t *testing.T) {
	assert.NoError(t, NewError(KindProvider, "embed", nil))
}

// TestError_Is tests that both the kind and the cause are matchable
func TestError_Is(t *testing.T) {
	err := NewError(KindProvider, "embed query", ErrRateLimited)

	assert.True(t, errors.Is(err, ErrProvider))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrIndex))
	assert.Equal(t, "provider: embed query: rate limited", err.Error())
}

// TestError_WrappedKind tests KindOf through fmt.Errorf wrapping
func TestError_WrappedKind(t *testing.T) {
	inner := NewError(KindIndex, "search", errors.New("disk full"))
	err := fmt.Errorf("retrieve: %w", inner)

	assert.Equal(t, KindIndex, KindOf(err))
	assert.ErrorIs(t, err, ErrIndex)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "search", e.Op)
}

// TestKindOf_Internal tests unstructured errors
func TestKindOf_Internal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

// TestNewValidationError tests formatting without an op
func TestNewValidationError(t *testing.T) {
	err := NewValidationError("top_k %d too large", 99)

	assert.Equal(t, "validation: top_k 99 too large", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
}
