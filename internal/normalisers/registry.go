package normalisers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/normalisers/html"
	"github.com/custodia-labs/finsight/internal/normalisers/pdf"
	"github.com/custodia-labs/finsight/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry maps file extensions to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]driven.Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]driven.Parser)}
}

// NewDefaultRegistry creates a registry with the pdf, html and plain text parsers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(html.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a parser for all of its extensions, replacing any
// previous parser for them.
func (r *Registry) Register(parser driven.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range parser.Extensions() {
		r.parsers[strings.ToLower(ext)] = parser
	}
}

// SupportedExtensions returns all handled extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Lookup returns the parser for path's extension.
func (r *Registry) Lookup(path string) (driven.Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// ParseFile parses the file at path. A missing meta.ID is replaced with
// a random id; the source file name is always the base name of path.
func (r *Registry) ParseFile(ctx context.Context, path string, meta domain.DocumentMeta) (*domain.Document, error) {
	parser, ok := r.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), domain.ErrUnsupportedType)
	}

	f, err := os.Open(path) // #nosec G304 -- user-supplied corpus path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.FilingType == "" {
		meta.FilingType = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	doc, err := parser.Parse(ctx, f, info.Size(), meta)
	if err != nil {
		return nil, fmt.Errorf("%s parser: %w", parser.Name(), err)
	}
	doc.SourceFile = filepath.Base(path)
	return doc, nil
}
