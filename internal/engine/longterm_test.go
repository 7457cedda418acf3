package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/memtier/memtier/internal/engine"
	"github.com/memtier/memtier/pkg/types"
)

func newEpisode(id string, occurred time.Time, location string, entities ...string) *types.EpisodicEntry {
	return &types.EpisodicEntry{
		LongTermEntry: types.LongTermEntry{
			MemoryRecord: types.MemoryRecord{ID: id, CreatedAt: occurred, Importance: 0.7},
			Category:     types.CategoryEpisodic,
		},
		Summary:           "episode " + id,
		OccurredAt:        occurred,
		Location:          location,
		InvolvedEntityIDs: entities,
	}
}

// TestEpisodesSimilarPredicate exercises all three clauses of the merge
// predicate.
func TestEpisodesSimilarPredicate(t *testing.T) {
	store := engine.NewLongTermStore(engine.DefaultConfig())
	now := time.Now()

	base := newEpisode("ep-base", now, "Office", "e1", "e2")

	cases := []struct {
		name  string
		other *types.EpisodicEntry
		want  bool
	}{
		{"identical_entities_same_time", newEpisode("ep-a", now.Add(time.Hour), "Office", "e1", "e2"), true},
		{"overlap_below_threshold", newEpisode("ep-b", now, "Office", "e1", "e3"), false}, // Jaccard 1/3
		{"outside_merge_window", newEpisode("ep-c", now.Add(25*time.Hour), "Office", "e1", "e2"), false},
		{"conflicting_location", newEpisode("ep-d", now, "Home", "e1", "e2"), false},
		{"absent_location_is_compatible", newEpisode("ep-e", now, "", "e1", "e2"), true},
		{"no_entities", newEpisode("ep-f", now, "Office"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := store.EpisodesSimilar(base, tc.other); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// TestFindSimilarEpisodePrefersFirstOccurrence verifies that with multiple
// matches, the earliest-occurring stored episode wins.
func TestFindSimilarEpisodePrefersFirstOccurrence(t *testing.T) {
	store := engine.NewLongTermStore(engine.DefaultConfig())
	now := time.Now()

	// Two stored episodes that would both match the candidate (they do not
	// match each other: disjoint windows are not needed since the store is
	// built directly here).
	early := newEpisode("ep-early", now.Add(-2*time.Hour), "Office", "e1", "e2")
	late := newEpisode("ep-late", now.Add(23*time.Hour), "Office", "e1", "e2")
	store.UpsertEpisode(early)
	store.UpsertEpisode(late)

	candidate := newEpisode("ep-cand", now, "Office", "e1", "e2")
	match := store.FindSimilarEpisode(candidate)
	if match == nil || match.ID != "ep-early" {
		t.Errorf("expected earliest match ep-early, got %v", match)
	}
}

// TestVerifyEpisodicExclusivity verifies the invariant check surfaces
// ErrCorruptState instead of repairing.
func TestVerifyEpisodicExclusivity(t *testing.T) {
	store := engine.NewLongTermStore(engine.DefaultConfig())
	now := time.Now()

	store.UpsertEpisode(newEpisode("ep-1", now, "Office", "e1", "e2"))
	if err := store.VerifyEpisodicExclusivity(); err != nil {
		t.Fatalf("single episode cannot violate exclusivity: %v", err)
	}

	store.UpsertEpisode(newEpisode("ep-2", now.Add(time.Hour), "Office", "e1", "e2"))
	err := store.VerifyEpisodicExclusivity()
	if !errors.Is(err, engine.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}

	// The store must not have silently removed either entry.
	if len(store.Episodes()) != 2 {
		t.Errorf("expected both episodes preserved, got %d", len(store.Episodes()))
	}
}

// TestReinforceAcrossCollections verifies Reinforce resolves IDs in any of
// the four collections.
func TestReinforceAcrossCollections(t *testing.T) {
	store := engine.NewLongTermStore(engine.DefaultConfig())
	now := time.Now()

	store.UpsertEpisode(newEpisode("ep-1", now, "", "e1"))
	store.UpsertFact(&types.ConsolidatedFact{
		LongTermEntry: types.LongTermEntry{
			MemoryRecord: types.MemoryRecord{ID: "fact-1"},
		},
		Statement: "prefers morning meetings",
	})

	if err := store.Reinforce("ep-1", now); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.Reinforce("fact-1", now); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.Reinforce("missing", now); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if store.Episodes()[0].AccessCount != 1 {
		t.Errorf("expected episode access recorded")
	}
}

// TestAddCrossReferenceRequiresBothEndpoints verifies the store checks both
// IDs and stores the link one-way.
func TestAddCrossReferenceRequiresBothEndpoints(t *testing.T) {
	store := engine.NewLongTermStore(engine.DefaultConfig())
	now := time.Now()

	store.UpsertEpisode(newEpisode("ep-1", now, "", "e1"))
	store.UpsertEpisode(newEpisode("ep-2", now.Add(48*time.Hour), "", "e9"))

	if err := store.AddCrossReference("ep-1", "ep-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.AddCrossReference("ep-1", "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing target, got %v", err)
	}
	if err := store.AddCrossReference("missing", "ep-1"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing source, got %v", err)
	}

	episodes := store.Episodes()
	if len(episodes[0].CrossReferences) != 1 || episodes[0].CrossReferences[0] != "ep-2" {
		t.Errorf("expected ep-1 -> ep-2 link, got %v", episodes[0].CrossReferences)
	}
	if len(episodes[1].CrossReferences) != 0 {
		t.Errorf("reverse link must not be mirrored, got %v", episodes[1].CrossReferences)
	}
	if store.CrossReferenceCount() != 1 {
		t.Errorf("expected 1 cross-reference total, got %d", store.CrossReferenceCount())
	}
}
