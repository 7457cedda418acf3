// Package sqlite persists long-term memory snapshots in a SQLite database.
// The in-memory long-term store remains the source of truth; this package is
// its write-through durability layer and the hydration source at startup.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/memtier/memtier/internal/storage"
	"github.com/memtier/memtier/pkg/types"
)

// SnapshotStore implements storage.SnapshotStore using SQLite.
//
// Entries are stored as JSON payloads alongside a few denormalized columns
// used for ad-hoc inspection. The payload is authoritative; the columns are
// never read back into memory.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens (or creates) the snapshot database at dsn and
// ensures the schema exists.
func NewSnapshotStore(dsn string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id          TEXT PRIMARY KEY,
	occurred_at TIMESTAMP NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_episodes_occurred_at ON episodes(occurred_at);

CREATE TABLE IF NOT EXISTS concepts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_concepts_name ON concepts(name);

CREATE TABLE IF NOT EXISTS patterns (
	id                TEXT PRIMARY KEY,
	window_start_hour INTEGER NOT NULL,
	payload           TEXT NOT NULL,
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS facts (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// upsert writes one row with insert-or-replace semantics.
func (s *SnapshotStore) upsert(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// SaveEpisode persists an episodic entry.
func (s *SnapshotStore) SaveEpisode(ctx context.Context, e *types.EpisodicEntry) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: episode with an ID is required", storage.ErrInvalidInput)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal episode %s: %w", e.ID, err)
	}
	return s.upsert(ctx, `
		INSERT INTO episodes (id, occurred_at, location, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			occurred_at = excluded.occurred_at,
			location    = excluded.location,
			payload     = excluded.payload,
			updated_at  = excluded.updated_at
	`, e.ID, e.OccurredAt, e.Location, string(payload), time.Now().UTC())
}

// SaveConcept persists a semantic concept.
func (s *SnapshotStore) SaveConcept(ctx context.Context, c *types.SemanticConcept) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: concept with an ID is required", storage.ErrInvalidInput)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal concept %s: %w", c.ID, err)
	}
	return s.upsert(ctx, `
		INSERT INTO concepts (id, name, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, string(payload), time.Now().UTC())
}

// SavePattern persists a procedure pattern.
func (s *SnapshotStore) SavePattern(ctx context.Context, p *types.ProcedurePattern) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: pattern with an ID is required", storage.ErrInvalidInput)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal pattern %s: %w", p.ID, err)
	}
	return s.upsert(ctx, `
		INSERT INTO patterns (id, window_start_hour, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			window_start_hour = excluded.window_start_hour,
			payload           = excluded.payload,
			updated_at        = excluded.updated_at
	`, p.ID, p.WindowStartHour, string(payload), time.Now().UTC())
}

// SaveFact persists a consolidated fact.
func (s *SnapshotStore) SaveFact(ctx context.Context, f *types.ConsolidatedFact) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("%w: fact with an ID is required", storage.ErrInvalidInput)
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal fact %s: %w", f.ID, err)
	}
	return s.upsert(ctx, `
		INSERT INTO facts (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, f.ID, string(payload), time.Now().UTC())
}

// DeleteEpisode removes an episodic entry. Deleting an absent ID is a no-op.
func (s *SnapshotStore) DeleteEpisode(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: episode ID is required", storage.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM episodes WHERE id = ?", id)
	return err
}

// LoadAll reads every persisted entry. Used once at startup to hydrate the
// in-memory long-term store.
func (s *SnapshotStore) LoadAll(ctx context.Context) (*storage.Snapshot, error) {
	snap := &storage.Snapshot{}

	if err := loadTable(ctx, s.db, "episodes", func(payload []byte) error {
		var e types.EpisodicEntry
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		snap.Episodes = append(snap.Episodes, &e)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(ctx, s.db, "concepts", func(payload []byte) error {
		var c types.SemanticConcept
		if err := json.Unmarshal(payload, &c); err != nil {
			return err
		}
		snap.Concepts = append(snap.Concepts, &c)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(ctx, s.db, "patterns", func(payload []byte) error {
		var p types.ProcedurePattern
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		snap.Patterns = append(snap.Patterns, &p)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(ctx, s.db, "facts", func(payload []byte) error {
		var f types.ConsolidatedFact
		if err := json.Unmarshal(payload, &f); err != nil {
			return err
		}
		snap.Facts = append(snap.Facts, &f)
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

// loadTable streams every payload in a table through decode.
func loadTable(ctx context.Context, db *sql.DB, table string, decode func([]byte) error) error {
	rows, err := db.QueryContext(ctx, "SELECT payload FROM "+table)
	if err != nil {
		return fmt.Errorf("sqlite: failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("sqlite: failed to scan %s row: %w", table, err)
		}
		if err := decode([]byte(payload)); err != nil {
			return fmt.Errorf("sqlite: corrupt payload in %s: %w", table, err)
		}
	}
	return rows.Err()
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
