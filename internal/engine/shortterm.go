package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memtier/memtier/pkg/types"
)

// shortTermAccessBoost is added to Importance on every store-level access.
const shortTermAccessBoost = 0.1

// IngestRequest carries the already-extracted content handed to the core by
// external collaborators. All identifiers are weak references.
type IngestRequest struct {
	Content          string           `json:"content"`
	MemoryType       types.MemoryType `json:"memory_type"`
	Importance       float64          `json:"importance"`
	SourceRecordID   string           `json:"source_record_id,omitempty"`
	RelatedEntityIDs []string         `json:"related_entity_ids,omitempty"`
	EmotionalWeight  float64          `json:"emotional_weight"`
	ContextTags      []string         `json:"context_tags,omitempty"`
	Location         string           `json:"location,omitempty"`

	// ConsolidationScore overrides the derived readiness score when > 0.
	ConsolidationScore float64 `json:"consolidation_score,omitempty"`
}

// ShortTermStore holds short-lived entries keyed by ID. Decay is a function
// of "now" and is recomputed before every strength read; the persisted
// DecayFactor field is refreshed on each access rather than ticked forward.
//
// The store expects a single logical owner; it performs no internal locking.
type ShortTermStore struct {
	entries map[string]*types.ShortTermEntry
}

// NewShortTermStore returns an empty short-term store.
func NewShortTermStore() *ShortTermStore {
	return &ShortTermStore{entries: make(map[string]*types.ShortTermEntry)}
}

// Ingest validates and stores a new entry, returning its ID.
// Missing content is the one rejection condition; everything else is
// normalized (scores clamped, unknown memory types defaulted to episodic).
func (s *ShortTermStore) Ingest(req IngestRequest, now time.Time) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("content is required: %w", ErrInvalidInput)
	}

	memType := req.MemoryType
	switch memType {
	case types.MemoryEpisodic, types.MemorySemantic, types.MemoryProcedural, types.MemoryWorking:
	default:
		memType = types.MemoryEpisodic
	}

	score := req.ConsolidationScore
	if score == 0 {
		// Derived readiness: important or emotionally loaded content is a
		// stronger consolidation candidate.
		score = req.Importance + req.EmotionalWeight/2
	}

	entry := &types.ShortTermEntry{
		MemoryRecord: types.MemoryRecord{
			ID:         uuid.NewString(),
			CreatedAt:  now,
			Importance: types.Clamp01(req.Importance),
		},
		Content:            req.Content,
		MemoryType:         memType,
		SourceRecordID:     req.SourceRecordID,
		RelatedEntityIDs:   dedupeIDs(req.RelatedEntityIDs),
		EmotionalWeight:    types.Clamp01(req.EmotionalWeight),
		ContextTags:        req.ContextTags,
		Location:           req.Location,
		ConsolidationScore: types.Clamp01(score),
	}
	entry.DecayFactor = entry.ComputeDecayFactor(now)

	s.entries[entry.ID] = entry
	return entry.ID, nil
}

// Get returns the entry with the given ID, refreshing its decay factor
// before the read. Returns ErrNotFound when absent.
func (s *ShortTermStore) Get(id string, now time.Time) (*types.ShortTermEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("short-term entry %s: %w", id, ErrNotFound)
	}
	entry.DecayFactor = entry.ComputeDecayFactor(now)
	return entry, nil
}

// Access marks the entry as accessed: access count and timestamp refresh,
// importance rises by 0.1 (clamped), and decay is recomputed.
func (s *ShortTermStore) Access(id string, now time.Time) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("short-term entry %s: %w", id, ErrNotFound)
	}
	entry.AccessCount++
	entry.LastAccessedAt = &now
	entry.Importance = types.Clamp01(entry.Importance + shortTermAccessBoost)
	entry.DecayFactor = entry.ComputeDecayFactor(now)
	return nil
}

// UpdateDecay recomputes every entry's decay factor for the given instant.
// Called before any scan so strength reads never use a stale factor.
func (s *ShortTermStore) UpdateDecay(now time.Time) {
	for _, entry := range s.entries {
		entry.DecayFactor = entry.ComputeDecayFactor(now)
	}
}

// EntriesEligibleForConsolidation returns all entries whose consolidation
// predicate holds, ordered by current strength descending. This ordering is
// the tie-break used by the engine when a cycle is capacity-limited.
func (s *ShortTermStore) EntriesEligibleForConsolidation(now time.Time) []*types.ShortTermEntry {
	s.UpdateDecay(now)

	var eligible []*types.ShortTermEntry
	for _, entry := range s.entries {
		if entry.ShouldConsolidate(now) {
			eligible = append(eligible, entry)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := eligible[i].CurrentStrength(now), eligible[j].CurrentStrength(now)
		if si != sj {
			return si > sj
		}
		// Stable tie-break on ID so cycle ordering is reproducible.
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// Remove deletes an entry from the store. Removing an absent ID is a no-op;
// eviction is silent by contract.
func (s *ShortTermStore) Remove(id string) {
	delete(s.entries, id)
}

// All returns every entry, decay-refreshed, in no particular order.
func (s *ShortTermStore) All(now time.Time) []*types.ShortTermEntry {
	s.UpdateDecay(now)
	out := make([]*types.ShortTermEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out
}

// Len returns the number of stored entries.
func (s *ShortTermStore) Len() int {
	return len(s.entries)
}

// dedupeIDs returns ids with empty strings and duplicates removed,
// preserving first-occurrence order.
func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
