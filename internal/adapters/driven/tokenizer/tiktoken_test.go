package tokenizer

import (
	"errors"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
)

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"openai/gpt-5.1", EncodingO200K},
		{"gpt-4.1-mini", EncodingO200K},
		{"gpt-4o", EncodingO200K},
		{"o3-mini", EncodingO200K},
		{"gpt-4", EncodingCL100K},
		{"anthropic/claude-opus-4.5", EncodingCL100K},
		{"", EncodingCL100K},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodingFor(tt.model))
		})
	}
}

func TestCounter_FallbackWhenEncodingUnavailable(t *testing.T) {
	loads := 0
	c := NewCounter()
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		loads++
		return nil, errors.New("offline")
	}

	assert.Equal(t, 3, c.Count("gpt-5.1", "twelve chars"))
	assert.Equal(t, 1, c.Count("gpt-5.1", "a"))
	assert.Equal(t, 1, loads, "a failed encoding is not reloaded")
}

func TestCounter_Empty(t *testing.T) {
	c := NewCounter()
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		t.Fatal("empty text must not load an encoding")
		return nil, nil
	}

	assert.Zero(t, c.Count("gpt-5.1", ""))
}

func TestCounter_EncodersCachedPerEncoding(t *testing.T) {
	var names []string
	c := NewCounter()
	c.load = func(name string) (*tiktoken.Tiktoken, error) {
		names = append(names, name)
		return nil, errors.New("offline")
	}

	c.Count("gpt-5.1", "x")
	c.Count("gpt-4.1-mini", "x")
	c.Count("anthropic/claude-opus-4.5", "x")

	assert.Equal(t, []string{EncodingO200K, EncodingCL100K}, names)
}
