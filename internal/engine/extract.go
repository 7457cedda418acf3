package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/memtier/memtier/pkg/types"
)

// extractionDivisor scales frequency into strength: min(1.0, n/10).
const extractionDivisor = 10.0

func frequencyStrength(n int) float64 {
	return types.Clamp01(float64(n) / extractionDivisor)
}

func patternStrength(n int) float64 {
	return frequencyStrength(n)
}

// extractConcepts mines the semantic tier: any entity mentioned in at least
// MinConceptFrequency distinct episodes within the lookback window becomes
// (or reinforces) a concept. Reinforcement happens only when new evidence
// episodes appear, so re-running on unchanged state is a no-op.
// Returns the number of concepts created or reinforced.
func (e *Engine) extractConcepts(now time.Time) int {
	since := now.Add(-e.config.SemanticLookback)

	// entity -> contributing episode IDs, distinct.
	occurrences := make(map[string][]string)
	for _, ep := range e.longTerm.Episodes() {
		if ep.OccurredAt.Before(since) {
			continue
		}
		for _, entityID := range ep.InvolvedEntityIDs {
			occurrences[entityID] = append(occurrences[entityID], ep.ID)
		}
	}

	// Deterministic extraction order.
	entities := make([]string, 0, len(occurrences))
	for entityID := range occurrences {
		entities = append(entities, entityID)
	}
	sort.Strings(entities)

	touched := 0
	for _, entityID := range entities {
		episodeIDs := occurrences[entityID]
		if len(episodeIDs) < e.config.MinConceptFrequency {
			continue
		}

		concept := e.longTerm.ConceptByName(entityID)
		if concept == nil {
			concept = &types.SemanticConcept{
				LongTermEntry: types.LongTermEntry{
					MemoryRecord: types.MemoryRecord{
						ID:        uuid.NewString(),
						CreatedAt: now,
					},
					Category:      types.CategorySemantic,
					StrengthScore: frequencyStrength(len(episodeIDs)),
				},
				Name:        entityID,
				Strength:    frequencyStrength(len(episodeIDs)),
				EvidenceIDs: append([]string(nil), episodeIDs...),
			}
			e.longTerm.UpsertConcept(concept)
			touched++
			continue
		}

		// Reinforce only on genuinely new evidence.
		before := len(concept.EvidenceIDs)
		concept.EvidenceIDs = unionIDs(concept.EvidenceIDs, episodeIDs)
		if len(concept.EvidenceIDs) == before {
			continue
		}
		concept.Strength = types.Clamp01(concept.Strength + 0.1)
		e.longTerm.UpsertConcept(concept)
		touched++
	}
	return touched
}

// extractPatterns mines the procedural tier: episodes are bucketed into
// fixed time-of-day windows, and any window holding at least MinPatternCount
// episodes becomes (or reinforces) a procedure pattern whose steps are the
// episode summaries. The window bucketing is a deliberate coarse heuristic;
// windows are processed in ascending start-hour order so ties resolve
// reproducibly. Returns the number of patterns created or reinforced.
func (e *Engine) extractPatterns(now time.Time) int {
	since := now.Add(-e.config.SemanticLookback)

	buckets := make(map[int][]*types.EpisodicEntry)
	for _, ep := range e.longTerm.Episodes() {
		if ep.OccurredAt.Before(since) {
			continue
		}
		start := windowStart(ep.OccurredAt, e.config.PatternWindowHours)
		buckets[start] = append(buckets[start], ep)
	}

	windows := make([]int, 0, len(buckets))
	for start := range buckets {
		windows = append(windows, start)
	}
	sort.Ints(windows)

	touched := 0
	for _, start := range windows {
		episodes := buckets[start]
		if len(episodes) < e.config.MinPatternCount {
			continue
		}

		// Episodes() is ordered by OccurredAt, so steps follow occurrence
		// order within the window.
		pattern := e.longTerm.PatternByWindow(start)
		if pattern == nil {
			pattern = &types.ProcedurePattern{
				LongTermEntry: types.LongTermEntry{
					MemoryRecord: types.MemoryRecord{
						ID:        uuid.NewString(),
						CreatedAt: now,
					},
					Category: types.CategoryProcedural,
				},
				Name:            windowName(start, e.config.PatternWindowHours),
				WindowStartHour: start,
			}
		}

		before := len(pattern.SourceEpisodeIDs)
		for _, ep := range episodes {
			if containsID(pattern.SourceEpisodeIDs, ep.ID) {
				continue
			}
			pattern.SourceEpisodeIDs = append(pattern.SourceEpisodeIDs, ep.ID)
			pattern.Steps = append(pattern.Steps, ep.Summary)
		}
		if len(pattern.SourceEpisodeIDs) == before && before > 0 {
			continue
		}
		pattern.Strength = patternStrength(len(pattern.SourceEpisodeIDs))
		pattern.StrengthScore = pattern.Strength
		e.longTerm.UpsertPattern(pattern)
		touched++
	}
	return touched
}

// windowStart returns the start hour of the fixed time-of-day window
// containing t.
func windowStart(t time.Time, windowHours int) int {
	return (t.Hour() / windowHours) * windowHours
}

// windowName renders a window as "routine 09:00-12:00".
func windowName(start, windowHours int) string {
	end := (start + windowHours) % 24
	return fmt.Sprintf("routine %02d:00-%02d:00", start, end)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
