// Package storage defines the persistence interfaces for the long-term
// memory collections. The core engine is fully functional without any
// backend attached; a backend adds durability (snapshots) and
// embedding-based retrieval, nothing more. Persistence schema is an
// implementation detail of each backend.
package storage

import (
	"context"
	"errors"

	"github.com/memtier/memtier/pkg/types"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Snapshot is the full persisted state of the long-term store, used to
// hydrate an in-memory store at startup.
type Snapshot struct {
	Episodes []*types.EpisodicEntry
	Concepts []*types.SemanticConcept
	Patterns []*types.ProcedurePattern
	Facts    []*types.ConsolidatedFact
}

// SnapshotStore persists long-term entries with upsert semantics. The
// engine writes through on every change; implementations decide schema.
type SnapshotStore interface {
	SaveEpisode(ctx context.Context, e *types.EpisodicEntry) error
	SaveConcept(ctx context.Context, c *types.SemanticConcept) error
	SavePattern(ctx context.Context, p *types.ProcedurePattern) error
	SaveFact(ctx context.Context, f *types.ConsolidatedFact) error

	// DeleteEpisode removes a persisted episode, typically after a merge
	// absorbed it into another one. Deleting an absent ID is not an error.
	DeleteEpisode(ctx context.Context, id string) error

	// LoadAll returns every persisted entry.
	LoadAll(ctx context.Context) (*Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}

// EmbeddingProvider stores opaque embedding vectors keyed by memory ID and
// ranks stored vectors against a query vector. The core treats vectors as
// opaque; dimension handling belongs to the backend.
type EmbeddingProvider interface {
	// StoreEmbedding upserts the vector for a memory ID.
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float32) error

	// SimilarIDs returns up to limit memory IDs ranked by similarity to the
	// query vector, best first, with their similarity in [0, 1].
	SimilarIDs(ctx context.Context, query []float32, limit int) ([]ScoredID, error)

	// DeleteEmbedding removes the vector for a memory ID.
	DeleteEmbedding(ctx context.Context, memoryID string) error
}

// ScoredID pairs a memory ID with a similarity score.
type ScoredID struct {
	ID    string
	Score float64
}
