package ai

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable is returned once completion retries are exhausted.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrEmbedding is returned when the embedding service fails or returns no data.
	ErrEmbedding = errors.New("embedding service error")
)

// TokenStream is a pull-based, finite, non-restartable sequence of output
// fragments. Next returns io.EOF once the sequence is complete. Concatenating
// every token in arrival order yields the full answer text. Close releases the
// underlying transport; it is safe to call more than once.
type TokenStream interface {
	Next() (string, error)
	Close()
}

// ModelClient wraps the language model. Complete blocks for the full answer
// and retries transient failures. Stream retries only until the first token
// has been produced; after that a failure surfaces as a stream error.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
