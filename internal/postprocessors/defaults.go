package postprocessors

import (
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/postprocessors/chunker"
	"github.com/custodia-labs/finsight/internal/postprocessors/sections"
)

// DefaultProcessors is the pipeline used when none is configured.
var DefaultProcessors = []string{"chunker", "sections"}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("sections", buildSections)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - window_lines (int): Lines per chunk (default: 12)
//   - overlap_lines (int): Lines shared by consecutive chunks (default: 3)
//   - max_chars (int): Character budget per chunk (default: 2000)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "window_lines"); ok {
		opts = append(opts, chunker.WithWindowLines(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap_lines"); ok {
		opts = append(opts, chunker.WithOverlapLines(overlap))
	}
	if chars, ok := getIntFromConfig(cfg, "max_chars"); ok {
		opts = append(opts, chunker.WithMaxChars(chars))
	}

	return chunker.New(opts...), nil
}

func buildSections(_ map[string]any) (driven.PostProcessor, error) {
	return sections.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
// The bool result is false when the key is missing or not numeric.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
