package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Parser turns the bytes of a source file into a document of pages and
// numbered lines. Page and line numbering must be stable: parsing the
// same bytes twice yields the same document.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string

	// Extensions returns the lowercase file extensions handled, with dot.
	Extensions() []string

	// Parse reads r and returns a document carrying meta.
	Parse(ctx context.Context, r io.ReaderAt, size int64, meta domain.DocumentMeta) (*domain.Document, error)
}

// ParserRegistry selects the parser for a file.
type ParserRegistry interface {
	// ParseFile parses the file at path with the parser registered for its extension.
	// Returns domain.ErrUnsupportedType when no parser handles it.
	ParseFile(ctx context.Context, path string, meta domain.DocumentMeta) (*domain.Document, error)

	// Register adds a parser, replacing any previous parser for the same extensions.
	Register(parser Parser)

	// SupportedExtensions returns all handled extensions, sorted.
	SupportedExtensions() []string
}
