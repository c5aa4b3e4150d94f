// Package postprocessors turns parsed filings into indexable chunks.
package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Pipeline chains PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline that runs processors in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order.
// The first processor receives nil chunks and should create them.
//
// The returned chunks carry the document's provenance, a content-derived
// id and a dense Position; blank chunks are dropped.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var chunks []domain.Chunk

	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return finalise(doc, chunks), nil
}

func finalise(doc *domain.Document, chunks []domain.Chunk) []domain.Chunk {
	if chunks == nil {
		return nil
	}
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if c.DocumentID == "" {
			c.DocumentID = doc.ID
		}
		if c.Ticker == "" {
			c.Ticker = domain.NormaliseTicker(doc.Ticker)
		}
		if c.Period == "" {
			c.Period = doc.Period
		}
		if c.FilingType == "" {
			c.FilingType = doc.FilingType
		}
		if c.SourceFile == "" {
			c.SourceFile = doc.SourceFile
		}
		if c.SourceURL == "" {
			c.SourceURL = doc.SourceURL
		}
		if c.ID == "" {
			c.ID = domain.NewChunkID(c.DocumentID, c.Page, c.StartLine, c.EndLine, c.Text)
		}
		c.Position = len(out)
		out = append(out, c)
	}
	return out
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
