package embedding

import (
	"context"
	"fmt"
	"log"

	"github.com/memtier/memtier/internal/storage"
)

// Embedder turns text into a vector. Implemented by Client; a stub in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ranker composes an embedder with a vector index to answer the similarity
// queries context search issues. It satisfies the engine's Ranker interface.
type Ranker struct {
	embedder Embedder
	index    storage.EmbeddingProvider
}

// NewRanker wires an embedder to a vector index.
func NewRanker(embedder Embedder, index storage.EmbeddingProvider) *Ranker {
	return &Ranker{embedder: embedder, index: index}
}

// SimilarIDs embeds the query text and returns the closest stored memory
// IDs with their similarity scores.
func (r *Ranker) SimilarIDs(ctx context.Context, query string, limit int) (map[string]float64, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := r.index.SimilarIDs(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity lookup failed: %w", err)
	}

	out := make(map[string]float64, len(scored))
	for _, s := range scored {
		out[s.ID] = s.Score
	}
	return out, nil
}

// Index embeds content and stores the vector under the memory ID. Indexing
// is best-effort: callers invoke it asynchronously and a failure only means
// the memory stays lexical-only.
func (r *Ranker) Index(ctx context.Context, memoryID, content string) error {
	vector, err := r.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed content for %s: %w", memoryID, err)
	}
	if err := r.index.StoreEmbedding(ctx, memoryID, vector); err != nil {
		return fmt.Errorf("failed to index %s: %w", memoryID, err)
	}
	return nil
}

// IndexAsync runs Index on its own goroutine, logging failures.
func (r *Ranker) IndexAsync(memoryID, content string) {
	go func() {
		if err := r.Index(context.Background(), memoryID, content); err != nil {
			log.Printf("warning: embedding index skipped: %v", err)
		}
	}()
}
