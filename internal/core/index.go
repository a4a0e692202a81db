package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/novalabs-ai/nova-chat/internal/ai"
	"github.com/novalabs-ai/nova-chat/internal/store"
)

// ErrNotReady is returned by grounded retrieval before any document has been
// successfully ingested.
var ErrNotReady = errors.New("retrieval index not ready: no documents ingested")

// EmbeddingIndex holds chunk embeddings in memory for brute-force cosine
// retrieval and mirrors every insert to the store. Inserted chunks are only
// appended; there is no delete or update. The index becomes ready after the
// first fully successful insert and stays ready for the life of the process.
type EmbeddingIndex struct {
	embedder ai.Embedder
	dbStore  *store.SQLiteStore

	mu     sync.RWMutex
	chunks []store.DataChunk
	dim    int
	ready  bool
}

// NewEmbeddingIndex creates the index, preloading any chunks already in the
// store (relevant with a file-backed database).
func NewEmbeddingIndex(dbStore *store.SQLiteStore, embedder ai.Embedder) (*EmbeddingIndex, error) {
	chunks, err := dbStore.GetAllDataChunks()
	if err != nil {
		return nil, fmt.Errorf("failed to load data chunks: %w", err)
	}

	idx := &EmbeddingIndex{embedder: embedder, dbStore: dbStore}
	if len(chunks) > 0 {
		idx.chunks = chunks
		idx.dim = len(chunks[0].Embedding)
		idx.ready = true
		log.Printf("Embedding index preloaded with %d chunks.", len(chunks))
	}
	return idx, nil
}

// Ready reports whether grounded retrieval is available.
func (x *EmbeddingIndex) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ready
}

// Len returns the number of indexed chunks.
func (x *EmbeddingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Insert embeds each chunk and appends it to the index. On an embedding
// failure the chunks embedded so far are still inserted (best effort) and the
// triggering error is returned; a persistence failure is reported together
// with any embedding failure that preceded it. The ready flag only flips on a
// fully successful insert.
func (x *EmbeddingIndex) Insert(ctx context.Context, document string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded := make([]store.DataChunk, 0, len(chunks))
	var embedErr error
	for _, c := range chunks {
		vec, err := x.embedder.Embed(ctx, c.Text)
		if err != nil {
			embedErr = fmt.Errorf("failed to embed chunk %d of %q: %w", c.Position, document, err)
			break
		}
		embedded = append(embedded, store.DataChunk{
			Document:  document,
			Position:  c.Position,
			Content:   c.Text,
			Embedding: vec,
		})
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range embedded {
		if x.dim == 0 {
			x.dim = len(embedded[i].Embedding)
		} else if len(embedded[i].Embedding) != x.dim {
			return fmt.Errorf("embedding dimension mismatch: index has %d, got %d", x.dim, len(embedded[i].Embedding))
		}
		if err := x.dbStore.CreateDataChunk(&embedded[i]); err != nil {
			return errors.Join(embedErr, fmt.Errorf("failed to persist chunk: %w", err))
		}
		x.chunks = append(x.chunks, embedded[i])
	}
	if embedErr == nil && len(embedded) > 0 {
		x.ready = true
	}
	return embedErr
}

type scoredChunk struct {
	chunk      store.DataChunk
	similarity float32
}

// Query embeds the query text and returns the texts of the k most similar
// chunks, most similar first. Ties keep insertion order.
func (x *EmbeddingIndex) Query(ctx context.Context, text string, k int) ([]string, error) {
	if !x.Ready() {
		return nil, ErrNotReady
	}
	if k <= 0 {
		return nil, nil
	}

	queryEmbedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	x.mu.RLock()
	candidates := x.chunks
	x.mu.RUnlock()

	scored := make([]scoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		if len(chunk.Embedding) == 0 {
			log.Printf("Skipping chunk ID %d due to missing embedding.", chunk.ID)
			continue
		}
		similarity, err := cosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			log.Printf("Error calculating similarity for chunk %d: %v. Skipping.", chunk.ID, err)
			continue
		}
		scored = append(scored, scoredChunk{chunk: chunk, similarity: similarity})
	}

	// Stable sort so equal scores keep insertion order (earlier wins).
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]string, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, scored[i].chunk.Content)
	}
	return results, nil
}

func cosineSimilarity(vec1, vec2 []float32) (float32, error) {
	if len(vec1) == 0 || len(vec2) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension")
	}

	var product, sq1, sq2 float32
	for i := range vec1 {
		product += vec1[i] * vec2[i]
		sq1 += vec1[i] * vec1[i]
		sq2 += vec2[i] * vec2[i]
	}

	mag1 := float32(math.Sqrt(float64(sq1)))
	mag2 := float32(math.Sqrt(float64(sq2)))
	if mag1 == 0 || mag2 == 0 {
		return 0, nil
	}
	return product / (mag1 * mag2), nil
}
