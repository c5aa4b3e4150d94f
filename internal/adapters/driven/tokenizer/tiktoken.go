// Package tokenizer counts tokens locally with tiktoken. It is used to
// price completions whose provider response carried no usage block.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// Encodings used for counting.
const (
	EncodingO200K  = "o200k_base"
	EncodingCL100K = "cl100k_base"
)

// Counter counts tokens with the BPE encoding closest to a model.
// Non-OpenAI models have no public tokenizer; cl100k_base approximates them.
// When an encoding cannot be loaded, counting falls back to one token per
// four bytes.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	failed   map[string]bool
	load     func(encoding string) (*tiktoken.Tiktoken, error)
}

// NewCounter creates a counter that loads encodings on first use.
func NewCounter() *Counter {
	return &Counter{
		encoders: make(map[string]*tiktoken.Tiktoken),
		failed:   make(map[string]bool),
		load:     tiktoken.GetEncoding,
	}
}

// EncodingFor returns the encoding name used for model.
func EncodingFor(model string) string {
	name := model
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, prefix := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(name, prefix) {
			return EncodingO200K
		}
	}
	return EncodingCL100K
}

// Count returns the number of tokens text encodes to for model.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoder(EncodingFor(model))
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *Counter) encoder(name string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[name]; ok {
		return enc
	}
	if c.failed[name] {
		return nil
	}
	enc, err := c.load(name)
	if err != nil {
		logger.Warn("Token encoding %s unavailable, estimating: %v", name, err)
		c.failed[name] = true
		return nil
	}
	c.encoders[name] = enc
	return enc
}
