package domain

import (
	"sort"
	"strings"
)

// DefaultJudgeModel is the fixed model used to score evaluation answers.
const DefaultJudgeModel = "anthropic/claude-opus-4.5"

// ModelInfo describes a chat model available for answering or judging.
type ModelInfo struct {
	// Alias is the short name accepted on the command line.
	Alias string

	// ID is the provider model identifier (OpenRouter style "vendor/model").
	ID string

	// InputPerMillion is the USD price per one million prompt tokens.
	InputPerMillion float64

	// OutputPerMillion is the USD price per one million completion tokens.
	OutputPerMillion float64
}

// DefaultModels returns the built-in model registry.
func DefaultModels() []ModelInfo {
	return []ModelInfo{
		{Alias: "claude-opus-4.5", ID: "anthropic/claude-opus-4.5", InputPerMillion: 5.0, OutputPerMillion: 25.0},
		{Alias: "claude-sonnet-4.5", ID: "anthropic/claude-sonnet-4.5", InputPerMillion: 3.0, OutputPerMillion: 15.0},
		{Alias: "gemini-3-pro", ID: "google/gemini-3-pro-preview", InputPerMillion: 2.0, OutputPerMillion: 12.0},
		{Alias: "gpt-5.1", ID: "openai/gpt-5.1", InputPerMillion: 1.25, OutputPerMillion: 10.0},
		{Alias: "kimi-k2-thinking", ID: "moonshotai/kimi-k2-thinking", InputPerMillion: 0.45, OutputPerMillion: 2.35},
		{Alias: "llama-4-maverick", ID: "meta-llama/llama-4-maverick", InputPerMillion: 0.136, OutputPerMillion: 0.68},
		{Alias: "gpt-4.1-mini", ID: "gpt-4.1-mini", InputPerMillion: 0.4, OutputPerMillion: 1.6},
	}
}

// ModelRegistry resolves aliases and looks up prices.
type ModelRegistry struct {
	byAlias map[string]ModelInfo
	byID    map[string]ModelInfo
}

// NewModelRegistry builds a registry from the given models.
// Later entries override earlier ones with the same alias or id.
func NewModelRegistry(models []ModelInfo) *ModelRegistry {
	r := &ModelRegistry{
		byAlias: make(map[string]ModelInfo, len(models)),
		byID:    make(map[string]ModelInfo, len(models)),
	}
	for _, m := range models {
		if m.Alias != "" {
			r.byAlias[m.Alias] = m
		}
		r.byID[m.ID] = m
	}
	return r
}

// Resolve maps an alias or full id to a provider model id.
// Anything containing "/" is accepted as a full id; unknown bare names
// are rejected so typos do not silently reach the provider.
func (r *ModelRegistry) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewValidationError("model name is required")
	}
	if m, ok := r.byAlias[name]; ok {
		return m.ID, nil
	}
	if _, ok := r.byID[name]; ok || strings.Contains(name, "/") {
		return name, nil
	}
	return "", NewValidationError("unknown model %q (available: %s)",
		name, strings.Join(r.Aliases(), ", "))
}

// Lookup returns the model info for a provider model id.
func (r *ModelRegistry) Lookup(id string) (ModelInfo, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Aliases returns all registered aliases, sorted.
func (r *ModelRegistry) Aliases() []string {
	out := make([]string, 0, len(r.byAlias))
	for a := range r.byAlias {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
