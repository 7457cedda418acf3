package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memtier/memtier/internal/session"
	"github.com/memtier/memtier/pkg/types"
)

// CycleState is the consolidation engine's current phase. A cycle always
// walks Idle -> Scanning -> Merging -> Extracting -> Emitting -> Idle.
type CycleState string

const (
	StateIdle       CycleState = "idle"
	StateScanning   CycleState = "scanning"
	StateMerging    CycleState = "merging"
	StateExtracting CycleState = "extracting"
	StateEmitting   CycleState = "emitting"
)

// EventSink consumes consolidation telemetry. The engine publishes one
// event per cycle and never interprets the stream further.
type EventSink interface {
	Publish(event types.ConsolidationEvent)
}

// Ranker supplies embedding-based similarity ranking for context search.
// When absent or failing, search degrades to lexical matching.
type Ranker interface {
	SimilarIDs(ctx context.Context, query string, limit int) (map[string]float64, error)
}

// Engine orchestrates the tiered memory system: it owns the short-term and
// long-term stores, tracks attached working sessions, and runs the
// consolidation cycle that promotes, merges, and mines entries.
//
// Cycles are serialized by an internal mutex: the engine is re-entrant and
// idempotent, but only one cycle runs at a time. Ingestion from concurrent
// producers must go through the engine, not the stores directly.
type Engine struct {
	mu sync.Mutex

	config    Config
	shortTerm *ShortTermStore
	longTerm  *LongTermStore
	sessions  map[string]*session.WorkingSession

	sinks  []EventSink
	ranker Ranker

	state CycleState
	now   func() time.Time
}

// NewEngine creates an engine with fresh, isolated stores. Stores are
// constructed per engine instance; there is no shared global state.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		config:    cfg,
		shortTerm: NewShortTermStore(),
		longTerm:  NewLongTermStore(cfg),
		sessions:  make(map[string]*session.WorkingSession),
		state:     StateIdle,
		now:       time.Now,
	}, nil
}

// SetClock replaces the engine's time source. Tests use this to make decay
// and window calculations deterministic.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// AttachSink registers a telemetry consumer.
func (e *Engine) AttachSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// AttachRanker registers an embedding-based similarity ranker.
func (e *Engine) AttachRanker(r Ranker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ranker = r
}

// AttachSession registers a working session so cycles can harvest its aged
// interactions.
func (e *Engine) AttachSession(s *session.WorkingSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[s.ID] = s
}

// DetachSession unregisters a session, typically at session end.
func (e *Engine) DetachSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}

// ShortTerm exposes the short-term store. The store is not internally
// synchronized; callers running concurrently with the engine must use the
// engine's own methods (or Stats) instead.
func (e *Engine) ShortTerm() *ShortTermStore { return e.shortTerm }

// LongTerm exposes the long-term store. The store is not internally
// synchronized; callers running concurrently with the engine must use the
// engine's own methods (or Stats) instead.
func (e *Engine) LongTerm() *LongTermStore { return e.longTerm }

// Stats is a point-in-time summary of engine state and store sizes.
type Stats struct {
	State            CycleState `json:"state"`
	ShortTermEntries int        `json:"short_term_entries"`
	LongTermEntries  int        `json:"long_term_entries"`
	CrossReferences  int        `json:"cross_references"`
	AttachedSessions int        `json:"attached_sessions"`
}

// Stats reads the store sizes under the engine mutex, so it is safe to call
// while cycles and ingestion run on other goroutines.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:            e.state,
		ShortTermEntries: e.shortTerm.Len(),
		LongTermEntries:  e.longTerm.Len(),
		CrossReferences:  e.longTerm.CrossReferenceCount(),
		AttachedSessions: len(e.sessions),
	}
}

// State returns the engine's current cycle phase.
func (e *Engine) State() CycleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Ingest is the sole write entry point for new content. It validates and
// stores a short-term entry and returns its ID.
func (e *Engine) Ingest(req IngestRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shortTerm.Ingest(req, e.now())
}

// Access records an access on a short-term entry.
func (e *Engine) Access(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shortTerm.Access(id, e.now())
}

// Reinforce records an access on a long-term entry.
func (e *Engine) Reinforce(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.longTerm.Reinforce(id, e.now())
}

// RecordFact stores a consolidated fact detected by an external
// collaborator. Facts are not mined by the engine itself; they arrive
// already distilled and are reinforced through access.
func (e *Engine) RecordFact(statement string, confidence float64) (string, error) {
	if statement == "" {
		return "", fmt.Errorf("statement is required: %w", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	fact := &types.ConsolidatedFact{
		LongTermEntry: types.LongTermEntry{
			MemoryRecord: types.MemoryRecord{
				ID:         uuid.NewString(),
				CreatedAt:  e.now(),
				Importance: types.Clamp01(confidence),
			},
			Category:      types.CategoryFact,
			StrengthScore: types.Clamp01(confidence),
		},
		Statement:  statement,
		Confidence: types.Clamp01(confidence),
	}
	e.longTerm.UpsertFact(fact)
	return fact.ID, nil
}

// cycleStats accumulates per-cycle telemetry.
type cycleStats struct {
	processed int
	successes int
	failures  int

	merged   int
	inserted int
	concepts int
	patterns int

	importanceSum float64
	confidenceSum float64

	sourceCounts map[types.MemoryType]int
	targetCounts map[types.Category]int
}

// RunConsolidationCycle runs one full Scanning -> Merging -> Extracting ->
// Emitting pass and returns the emitted event. Cycles are serialized;
// running twice on an already-consolidated state is idempotent.
//
// A single candidate failing is counted and skipped. An invariant violation
// detected after merging aborts the cycle with ErrCorruptState.
func (e *Engine) RunConsolidationCycle(ctx context.Context, trigger types.TriggerReason, userInitiated bool) (*types.ConsolidationEvent, error) {
	if !trigger.Valid() {
		return nil, fmt.Errorf("trigger %q: %w", trigger, ErrInvalidTrigger)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	stats := &cycleStats{
		sourceCounts: make(map[types.MemoryType]int),
		targetCounts: make(map[types.Category]int),
	}

	// Scanning: eligible short-term entries plus aged session interactions.
	e.state = StateScanning
	e.harvestSessions(start)
	candidates := e.takeBatch(e.shortTerm.EntriesEligibleForConsolidation(start))

	// Merging: promote each candidate into its long-term collection,
	// deduplicating episodes against the similarity predicate.
	e.state = StateMerging
	for _, entry := range candidates {
		if ctx.Err() != nil {
			e.state = StateIdle
			return nil, ctx.Err()
		}
		e.promote(entry, start, stats)
	}

	// Extracting: mine recurring concepts and time-of-day patterns over the
	// episodic collection.
	e.state = StateExtracting
	stats.concepts = e.extractConcepts(start)
	stats.patterns = e.extractPatterns(start)

	if err := e.longTerm.VerifyEpisodicExclusivity(); err != nil {
		e.state = StateIdle
		return nil, err
	}

	// Emitting: one event per cycle, published to every sink.
	e.state = StateEmitting
	event := e.buildEvent(start, trigger, userInitiated, stats)
	for _, sink := range e.sinks {
		sink.Publish(event)
	}

	e.state = StateIdle
	return &event, nil
}

// harvestSessions drains interactions older than the configured age from
// every attached session into the short-term store. Draining (rather than
// copying) keeps repeated cycles from re-harvesting the same activity.
func (e *Engine) harvestSessions(now time.Time) {
	cutoff := now.Add(-e.config.InteractionMinAge)
	for _, s := range e.sessions {
		for _, in := range s.DrainInteractionsBefore(cutoff) {
			req := IngestRequest{
				Content:            in.Content,
				MemoryType:         types.MemoryEpisodic,
				Importance:         0.6,
				RelatedEntityIDs:   in.EntityIDs,
				ContextTags:        []string{"session:" + s.ID},
				Location:           s.Location,
				ConsolidationScore: 0.75,
			}
			if _, err := e.shortTerm.Ingest(req, in.Timestamp); err != nil {
				log.Printf("warning: skipping empty interaction from session %s", s.ID)
			}
		}
	}
}

// takeBatch applies the capacity limit. Competing entries are ordered by
// their target category's consolidation priority first, then by the
// strength ordering the short-term store already produced.
func (e *Engine) takeBatch(eligible []*types.ShortTermEntry) []*types.ShortTermEntry {
	if e.config.MaxBatchSize <= 0 || len(eligible) <= e.config.MaxBatchSize {
		return eligible
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		pi := targetCategory(eligible[i].MemoryType).ConsolidationPriority()
		pj := targetCategory(eligible[j].MemoryType).ConsolidationPriority()
		return pi > pj
	})
	return eligible[:e.config.MaxBatchSize]
}

// targetCategory maps a short-term memory type to the long-term collection
// it promotes into. Working memories consolidate as episodes.
func targetCategory(mt types.MemoryType) types.Category {
	switch mt {
	case types.MemorySemantic:
		return types.CategorySemantic
	case types.MemoryProcedural:
		return types.CategoryProcedural
	default:
		return types.CategoryEpisodic
	}
}

// promote consolidates one short-term entry into the long-term store.
// Success removes the entry from the short-term store; failure counts and
// leaves it behind to decay.
func (e *Engine) promote(entry *types.ShortTermEntry, now time.Time, stats *cycleStats) {
	stats.processed++
	stats.sourceCounts[entry.MemoryType]++
	stats.importanceSum += entry.Importance
	stats.confidenceSum += entry.ConsolidationScore

	category := targetCategory(entry.MemoryType)
	stats.targetCounts[category]++

	var err error
	switch category {
	case types.CategorySemantic:
		err = e.promoteConcept(entry, now)
	case types.CategoryProcedural:
		err = e.promotePattern(entry, now)
	default:
		err = e.promoteEpisode(entry, now, stats)
	}

	if err != nil {
		stats.failures++
		log.Printf("consolidation: skipping entry %s: %v", entry.ID, err)
		return
	}
	stats.successes++
	e.shortTerm.Remove(entry.ID)
}

// promoteEpisode merges the entry into a similar stored episode or inserts
// it as a new one. An episodic candidate without any entity references
// cannot take part in deduplication and is treated as a failed merge.
func (e *Engine) promoteEpisode(entry *types.ShortTermEntry, now time.Time, stats *cycleStats) error {
	if len(entry.RelatedEntityIDs) == 0 {
		return fmt.Errorf("episode %s has no entity references: %w", entry.ID, ErrInvalidInput)
	}

	candidate := &types.EpisodicEntry{
		LongTermEntry: types.LongTermEntry{
			MemoryRecord: types.MemoryRecord{
				ID:         uuid.NewString(),
				CreatedAt:  now,
				Importance: entry.Importance,
			},
			Category:      types.CategoryEpisodic,
			StrengthScore: entry.CurrentStrength(now),
			RetrievalCues: entry.ContextTags,
		},
		Summary:           entry.Content,
		OccurredAt:        entry.CreatedAt,
		Location:          entry.Location,
		InvolvedEntityIDs: entry.RelatedEntityIDs,
		SourceNoteIDs:     []string{entry.ID},
		EmotionalValence:  entry.EmotionalWeight,
	}

	existing := e.longTerm.FindSimilarEpisode(candidate)
	if existing == nil {
		e.longTerm.UpsertEpisode(candidate)
		stats.inserted++
		return nil
	}

	mergeEpisode(existing, candidate)

	// The widened entity set can push the merged episode over the
	// similarity threshold against episodes it previously coexisted with.
	// Absorb those into the earliest occurrence until no stored episode is
	// similar to the result, so deduplication survives bridging candidates.
	for {
		next := e.longTerm.FindSimilarEpisode(existing)
		if next == nil {
			break
		}
		anchor, absorbed := existing, next
		if absorbed.OccurredAt.Before(anchor.OccurredAt) {
			anchor, absorbed = absorbed, anchor
		}
		mergeEpisode(anchor, absorbed)
		e.longTerm.RemoveEpisode(absorbed.ID)
		existing = anchor
	}

	e.longTerm.UpsertEpisode(existing)
	stats.merged++
	return nil
}

// mergeEpisode folds candidate into existing: entity IDs, source references,
// cues, and cross-references union, emotional valence averages, and the
// newer summary wins while the original occurrence timestamp is kept as the
// episode's anchor.
func mergeEpisode(existing, candidate *types.EpisodicEntry) {
	existing.InvolvedEntityIDs = unionIDs(existing.InvolvedEntityIDs, candidate.InvolvedEntityIDs)
	existing.SourceNoteIDs = unionIDs(existing.SourceNoteIDs, candidate.SourceNoteIDs)
	existing.RetrievalCues = unionIDs(existing.RetrievalCues, candidate.RetrievalCues)
	existing.CrossReferences = unionIDs(existing.CrossReferences, candidate.CrossReferences)
	existing.EmotionalValence = types.Clamp01((existing.EmotionalValence + candidate.EmotionalValence) / 2.0)
	if candidate.OccurredAt.After(existing.OccurredAt) {
		existing.Summary = candidate.Summary
	}
	if existing.Location == "" {
		existing.Location = candidate.Location
	}
	existing.Importance = types.Clamp01((existing.Importance + candidate.Importance) / 2.0)
	existing.StrengthScore = types.Clamp01(existing.StrengthScore + 0.05)
}

// promoteConcept folds a semantic short-term entry into the concept of the
// same name, or creates it.
func (e *Engine) promoteConcept(entry *types.ShortTermEntry, now time.Time) error {
	concept := e.longTerm.ConceptByName(entry.Content)
	if concept == nil {
		concept = &types.SemanticConcept{
			LongTermEntry: types.LongTermEntry{
				MemoryRecord: types.MemoryRecord{
					ID:         uuid.NewString(),
					CreatedAt:  now,
					Importance: entry.Importance,
				},
				Category:      types.CategorySemantic,
				StrengthScore: entry.CurrentStrength(now),
				RetrievalCues: entry.ContextTags,
			},
			Name:        entry.Content,
			Strength:    types.Clamp01(entry.Importance),
			EvidenceIDs: sourceEvidence(entry),
		}
		e.longTerm.UpsertConcept(concept)
		return nil
	}

	concept.Strength = types.Clamp01(concept.Strength + 0.1)
	concept.EvidenceIDs = unionIDs(concept.EvidenceIDs, sourceEvidence(entry))
	e.longTerm.UpsertConcept(concept)
	return nil
}

// promotePattern folds a procedural short-term entry into the pattern for
// its creation-time window.
func (e *Engine) promotePattern(entry *types.ShortTermEntry, now time.Time) error {
	window := windowStart(entry.CreatedAt, e.config.PatternWindowHours)
	pattern := e.longTerm.PatternByWindow(window)
	if pattern == nil {
		pattern = &types.ProcedurePattern{
			LongTermEntry: types.LongTermEntry{
				MemoryRecord: types.MemoryRecord{
					ID:         uuid.NewString(),
					CreatedAt:  now,
					Importance: entry.Importance,
				},
				Category:      types.CategoryProcedural,
				StrengthScore: entry.CurrentStrength(now),
			},
			Name:            windowName(window, e.config.PatternWindowHours),
			WindowStartHour: window,
		}
	}
	pattern.Steps = append(pattern.Steps, entry.Content)
	pattern.SourceEpisodeIDs = unionIDs(pattern.SourceEpisodeIDs, []string{entry.ID})
	pattern.Strength = patternStrength(len(pattern.SourceEpisodeIDs))
	e.longTerm.UpsertPattern(pattern)
	return nil
}

// buildEvent assembles the cycle's telemetry record.
func (e *Engine) buildEvent(start time.Time, trigger types.TriggerReason, userInitiated bool, stats *cycleStats) types.ConsolidationEvent {
	event := types.ConsolidationEvent{
		ID:                uuid.NewString(),
		StartedAt:         start,
		Duration:          e.now().Sub(start),
		SourceType:        dominantSource(stats.sourceCounts),
		TargetCategory:    dominantTarget(stats.targetCounts),
		Trigger:           trigger,
		UserInitiated:     userInitiated,
		ItemsProcessed:    stats.processed,
		Successes:         stats.successes,
		Failures:          stats.failures,
		EpisodesMerged:    stats.merged,
		EpisodesInserted:  stats.inserted,
		ConceptsExtracted: stats.concepts,
		PatternsExtracted: stats.patterns,
	}
	if stats.processed > 0 {
		event.AvgImportance = stats.importanceSum / float64(stats.processed)
		event.AvgConfidence = stats.confidenceSum / float64(stats.processed)
	}
	return event
}

// dominantSource returns the most common source memory type of the batch.
// Ties resolve to the lexically smaller type for reproducibility.
func dominantSource(counts map[types.MemoryType]int) types.MemoryType {
	best := types.MemoryEpisodic
	bestCount := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[types.MemoryType(k)] > bestCount {
			best = types.MemoryType(k)
			bestCount = counts[best]
		}
	}
	return best
}

// dominantTarget returns the most common target category of the batch.
func dominantTarget(counts map[types.Category]int) types.Category {
	best := types.CategoryEpisodic
	bestCount := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[types.Category(k)] > bestCount {
			best = types.Category(k)
			bestCount = counts[best]
		}
	}
	return best
}

// sourceEvidence returns the entry's external source reference when set,
// falling back to the entry's own ID.
func sourceEvidence(entry *types.ShortTermEntry) []string {
	if entry.SourceRecordID != "" {
		return []string{entry.SourceRecordID}
	}
	return []string{entry.ID}
}

// unionIDs appends the ids from b not already present in a, preserving
// order of first occurrence.
func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a = append(a, id)
	}
	return a
}
