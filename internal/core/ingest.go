package core

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/novalabs-ai/nova-chat/internal/extract"
)

// ErrEmptyDocument is returned when a document yields no extractable text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// IngestionPipeline runs one uploaded document through extract, chunk and
// index insertion. Each step depends on the previous one succeeding; an
// unsupported media type fails before any processing happens.
type IngestionPipeline struct {
	chunker *Chunker
	index   *EmbeddingIndex
}

func NewIngestionPipeline(chunker *Chunker, index *EmbeddingIndex) *IngestionPipeline {
	return &IngestionPipeline{chunker: chunker, index: index}
}

func (p *IngestionPipeline) Ingest(ctx context.Context, doc extract.Document) error {
	text, err := extract.FromDocument(doc)
	if err != nil {
		return err
	}

	chunks := p.chunker.Split(text.Content)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyDocument, doc.Name)
	}

	if err := p.index.Insert(ctx, doc.Name, chunks); err != nil {
		return err
	}

	log.Printf("Ingested %q: %d chunks, index now holds %d.", doc.Name, len(chunks), p.index.Len())
	return nil
}
