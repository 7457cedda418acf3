// Package postgres implements the embedding index on PostgreSQL with the
// pgvector extension. It stores one vector per memory ID and answers
// cosine-similarity queries for the context search ranker.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/memtier/memtier/internal/storage"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_embeddings (
	memory_id  TEXT PRIMARY KEY,
	embedding  vector(768) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memory_embeddings_cosine
	ON memory_embeddings USING ivfflat (embedding vector_cosine_ops);
`

// EmbeddingProvider implements storage.EmbeddingProvider on PostgreSQL with
// pgvector. Similarity is cosine; the <=> operator returns cosine distance,
// which is mapped to similarity as 1 - distance.
type EmbeddingProvider struct {
	db *sql.DB
}

// NewEmbeddingProvider connects to the database at dsn and ensures the
// pgvector extension and embeddings table exist.
func NewEmbeddingProvider(dsn string) (*EmbeddingProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create embedding schema: %w", err)
	}
	return &EmbeddingProvider{db: db}, nil
}

// NewEmbeddingProviderWithDB wraps an existing connection. The caller owns
// the connection's lifecycle; Close becomes a no-op.
func NewEmbeddingProviderWithDB(db *sql.DB) *EmbeddingProvider {
	return &EmbeddingProvider{db: db}
}

// StoreEmbedding upserts the vector for a memory ID.
func (p *EmbeddingProvider) StoreEmbedding(ctx context.Context, memoryID string, embedding []float32) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, embedding, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT(memory_id) DO UPDATE SET
			embedding  = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`, memoryID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding for %s: %w", memoryID, err)
	}
	return nil
}

// SimilarIDs returns up to limit memory IDs ranked by cosine similarity to
// the query vector, best first.
func (p *EmbeddingProvider) SimilarIDs(ctx context.Context, query []float32, limit int) ([]storage.ScoredID, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT memory_id, 1 - (embedding <=> $1) AS similarity
		FROM memory_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: similarity query failed: %w", err)
	}
	defer rows.Close()

	var out []storage.ScoredID
	for rows.Next() {
		var scored storage.ScoredID
		if err := rows.Scan(&scored.ID, &scored.Score); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan similarity row: %w", err)
		}
		out = append(out, scored)
	}
	return out, rows.Err()
}

// DeleteEmbedding removes the vector for a memory ID. Deleting an absent ID
// is a no-op.
func (p *EmbeddingProvider) DeleteEmbedding(ctx context.Context, memoryID string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_id = $1`, memoryID); err != nil {
		return fmt.Errorf("postgres: failed to delete embedding for %s: %w", memoryID, err)
	}
	return nil
}

// Close releases the database handle.
func (p *EmbeddingProvider) Close() error {
	return p.db.Close()
}
