package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/memtier/memtier/internal/storage"
	"github.com/memtier/memtier/pkg/types"
)

// LongTermStore owns the four consolidated collections: episodic, semantic,
// procedural, and fact. The store exclusively owns its entries; everything
// an entry points at outside the store is a weak, identifier-based
// reference.
//
// An optional snapshot store receives write-through copies of every change.
// Persistence failures are logged and never fail the in-memory operation.
type LongTermStore struct {
	episodes map[string]*types.EpisodicEntry
	concepts map[string]*types.SemanticConcept
	patterns map[string]*types.ProcedurePattern
	facts    map[string]*types.ConsolidatedFact

	similarityThreshold float64
	mergeWindow         time.Duration

	snapshots storage.SnapshotStore
}

// NewLongTermStore returns an empty store using the engine config's merge
// predicate parameters.
func NewLongTermStore(cfg Config) *LongTermStore {
	return &LongTermStore{
		episodes:            make(map[string]*types.EpisodicEntry),
		concepts:            make(map[string]*types.SemanticConcept),
		patterns:            make(map[string]*types.ProcedurePattern),
		facts:               make(map[string]*types.ConsolidatedFact),
		similarityThreshold: cfg.EntitySimilarityThreshold,
		mergeWindow:         cfg.MergeWindow,
	}
}

// AttachSnapshots enables write-through persistence and hydrates the store
// from the snapshot backend.
func (s *LongTermStore) AttachSnapshots(ctx context.Context, snaps storage.SnapshotStore) error {
	snapshot, err := snaps.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range snapshot.Episodes {
		s.episodes[e.ID] = e
	}
	for _, c := range snapshot.Concepts {
		s.concepts[c.ID] = c
	}
	for _, p := range snapshot.Patterns {
		s.patterns[p.ID] = p
	}
	for _, f := range snapshot.Facts {
		s.facts[f.ID] = f
	}
	s.snapshots = snaps
	return nil
}

func (s *LongTermStore) persistEpisode(e *types.EpisodicEntry) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveEpisode(context.Background(), e); err != nil {
		log.Printf("warning: failed to persist episode %s: %v", e.ID, err)
	}
}

func (s *LongTermStore) persistConcept(c *types.SemanticConcept) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveConcept(context.Background(), c); err != nil {
		log.Printf("warning: failed to persist concept %s: %v", c.ID, err)
	}
}

func (s *LongTermStore) persistPattern(p *types.ProcedurePattern) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SavePattern(context.Background(), p); err != nil {
		log.Printf("warning: failed to persist pattern %s: %v", p.ID, err)
	}
}

func (s *LongTermStore) persistFact(f *types.ConsolidatedFact) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveFact(context.Background(), f); err != nil {
		log.Printf("warning: failed to persist fact %s: %v", f.ID, err)
	}
}

// UpsertEpisode inserts or replaces an episodic entry.
func (s *LongTermStore) UpsertEpisode(e *types.EpisodicEntry) {
	e.Category = types.CategoryEpisodic
	s.episodes[e.ID] = e
	s.persistEpisode(e)
}

// UpsertConcept inserts or replaces a semantic concept.
func (s *LongTermStore) UpsertConcept(c *types.SemanticConcept) {
	c.Category = types.CategorySemantic
	s.concepts[c.ID] = c
	s.persistConcept(c)
}

// UpsertPattern inserts or replaces a procedure pattern.
func (s *LongTermStore) UpsertPattern(p *types.ProcedurePattern) {
	p.Category = types.CategoryProcedural
	s.patterns[p.ID] = p
	s.persistPattern(p)
}

// UpsertFact inserts or replaces a consolidated fact.
func (s *LongTermStore) UpsertFact(f *types.ConsolidatedFact) {
	f.Category = types.CategoryFact
	s.facts[f.ID] = f
	s.persistFact(f)
}

// RemoveEpisode deletes an episodic entry, used when a merge absorbs one
// stored episode into another. Removing an absent ID is a no-op.
func (s *LongTermStore) RemoveEpisode(id string) {
	if _, ok := s.episodes[id]; !ok {
		return
	}
	delete(s.episodes, id)
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.DeleteEpisode(context.Background(), id); err != nil {
		log.Printf("warning: failed to delete episode %s: %v", id, err)
	}
}

// Reinforce records an access on the entry with the given ID in whichever
// collection holds it. Returns ErrNotFound when no collection does.
func (s *LongTermStore) Reinforce(id string, now time.Time) error {
	if e, ok := s.episodes[id]; ok {
		e.Reinforce(now)
		s.persistEpisode(e)
		return nil
	}
	if c, ok := s.concepts[id]; ok {
		c.Reinforce(now)
		s.persistConcept(c)
		return nil
	}
	if p, ok := s.patterns[id]; ok {
		p.Reinforce(now)
		s.persistPattern(p)
		return nil
	}
	if f, ok := s.facts[id]; ok {
		f.Reinforce(now)
		s.persistFact(f)
		return nil
	}
	return ErrNotFound
}

// AddCrossReference links fromID to toID. The link is unidirectional: the
// reverse link is never added automatically. Returns ErrNotFound when
// either endpoint is absent from every collection.
func (s *LongTermStore) AddCrossReference(fromID, toID string) error {
	if s.lookup(toID) == nil {
		return ErrNotFound
	}
	from := s.lookup(fromID)
	if from == nil {
		return ErrNotFound
	}
	from.AddCrossReference(toID)
	s.persistByID(fromID)
	return nil
}

// lookup finds the shared LongTermEntry portion of any stored entry.
func (s *LongTermStore) lookup(id string) *types.LongTermEntry {
	if e, ok := s.episodes[id]; ok {
		return &e.LongTermEntry
	}
	if c, ok := s.concepts[id]; ok {
		return &c.LongTermEntry
	}
	if p, ok := s.patterns[id]; ok {
		return &p.LongTermEntry
	}
	if f, ok := s.facts[id]; ok {
		return &f.LongTermEntry
	}
	return nil
}

func (s *LongTermStore) persistByID(id string) {
	if e, ok := s.episodes[id]; ok {
		s.persistEpisode(e)
		return
	}
	if c, ok := s.concepts[id]; ok {
		s.persistConcept(c)
		return
	}
	if p, ok := s.patterns[id]; ok {
		s.persistPattern(p)
		return
	}
	if f, ok := s.facts[id]; ok {
		s.persistFact(f)
	}
}

// Episodes returns the episodic collection sorted by OccurredAt ascending.
func (s *LongTermStore) Episodes() []*types.EpisodicEntry {
	out := make([]*types.EpisodicEntry, 0, len(s.episodes))
	for _, e := range s.episodes {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Concepts returns the semantic collection sorted by name.
func (s *LongTermStore) Concepts() []*types.SemanticConcept {
	out := make([]*types.SemanticConcept, 0, len(s.concepts))
	for _, c := range s.concepts {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Patterns returns the procedural collection sorted by window start hour.
func (s *LongTermStore) Patterns() []*types.ProcedurePattern {
	out := make([]*types.ProcedurePattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WindowStartHour < out[j].WindowStartHour })
	return out
}

// Facts returns the fact collection sorted by ID.
func (s *LongTermStore) Facts() []*types.ConsolidatedFact {
	out := make([]*types.ConsolidatedFact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConceptByName returns the concept keyed by entity name, or nil.
func (s *LongTermStore) ConceptByName(name string) *types.SemanticConcept {
	for _, c := range s.concepts {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// PatternByWindow returns the pattern for the given window start hour, or nil.
func (s *LongTermStore) PatternByWindow(startHour int) *types.ProcedurePattern {
	for _, p := range s.patterns {
		if p.WindowStartHour == startHour {
			return p
		}
	}
	return nil
}

// EpisodesSimilar reports whether two episodes satisfy the merge predicate:
// entity Jaccard overlap above the threshold, occurrence timestamps within
// the merge window, and compatible locations (equal, or either absent).
func (s *LongTermStore) EpisodesSimilar(a, b *types.EpisodicEntry) bool {
	if jaccard(a.InvolvedEntityIDs, b.InvolvedEntityIDs) <= s.similarityThreshold {
		return false
	}
	delta := a.OccurredAt.Sub(b.OccurredAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > s.mergeWindow {
		return false
	}
	return a.Location == "" || b.Location == "" || a.Location == b.Location
}

// FindSimilarEpisode returns the stored episode the candidate would merge
// into, or nil when the candidate is novel. With multiple matches the
// earliest-occurring stored episode wins (stable first-occurrence order).
func (s *LongTermStore) FindSimilarEpisode(candidate *types.EpisodicEntry) *types.EpisodicEntry {
	var match *types.EpisodicEntry
	for _, e := range s.Episodes() {
		if e.ID == candidate.ID {
			continue
		}
		if s.EpisodesSimilar(e, candidate) {
			match = e
			break
		}
	}
	return match
}

// VerifyEpisodicExclusivity checks the deduplication invariant: no two
// stored episodic entries may satisfy the similarity predicate. A violation
// is returned as ErrCorruptState for the caller to surface; the store never
// repairs it silently.
func (s *LongTermStore) VerifyEpisodicExclusivity() error {
	episodes := s.Episodes()
	for i := 0; i < len(episodes); i++ {
		for j := i + 1; j < len(episodes); j++ {
			if s.EpisodesSimilar(episodes[i], episodes[j]) {
				return fmt.Errorf("episodes %s and %s are similar: %w",
					episodes[i].ID, episodes[j].ID, ErrCorruptState)
			}
		}
	}
	return nil
}

// Len returns the total number of long-term entries across all collections.
func (s *LongTermStore) Len() int {
	return len(s.episodes) + len(s.concepts) + len(s.patterns) + len(s.facts)
}

// CrossReferenceCount sums cross-reference counts across all collections.
// Used by idempotence checks in tests and maintenance tooling.
func (s *LongTermStore) CrossReferenceCount() int {
	total := 0
	for _, e := range s.episodes {
		total += len(e.CrossReferences)
	}
	for _, c := range s.concepts {
		total += len(c.CrossReferences)
	}
	for _, p := range s.patterns {
		total += len(p.CrossReferences)
	}
	for _, f := range s.facts {
		total += len(f.CrossReferences)
	}
	return total
}

// jaccard computes |intersection| / |union| over two ID sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	intersection := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := set[id]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// episodeStrength is the retrieval strength of a long-term episode at the
// given instant, using the shared composite strength formula.
func episodeStrength(e *types.EpisodicEntry, now time.Time) float64 {
	age := now.Sub(e.AccessedAt())
	strength := Strength(e.Importance, e.Decay, e.EmotionalValence, e.AccessCount, age, 30*24*time.Hour)
	// StrengthScore accumulates reinforcement; blend it in so an
	// often-referenced episode outranks a fresher but unreinforced one.
	return math.Max(strength, e.StrengthScore*(1-e.Decay))
}
