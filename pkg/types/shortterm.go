package types

import (
	"math"
	"time"
)

// MemoryType tags a short-term entry with the long-term tier it is headed
// for. Each type decays at its own exponential rate.
type MemoryType string

const (
	MemoryEpisodic   MemoryType = "episodic"
	MemorySemantic   MemoryType = "semantic"
	MemoryProcedural MemoryType = "procedural"
	MemoryWorking    MemoryType = "working"
)

// DecayRate returns the per-hour exponential decay constant for the type.
// Working memory decays fastest; procedural slowest.
func (m MemoryType) DecayRate() float64 {
	switch m {
	case MemoryEpisodic:
		return 0.1
	case MemorySemantic:
		return 0.05
	case MemoryProcedural:
		return 0.02
	case MemoryWorking:
		return 0.5
	default:
		return 0.1
	}
}

// decayFactorFloor is the minimum decay factor; entries never drop below it
// so heavily decayed memories remain faintly retrievable.
const decayFactorFloor = 0.1

// ShortTermEntry is a short-lived memory awaiting consolidation.
//
// SourceRecordID and RelatedEntityIDs are weak references resolved against
// external stores.
type ShortTermEntry struct {
	MemoryRecord

	Content            string     `json:"content"`
	MemoryType         MemoryType `json:"memory_type"`
	SourceRecordID     string     `json:"source_record_id,omitempty"`
	RelatedEntityIDs   []string   `json:"related_entity_ids,omitempty"`
	EmotionalWeight    float64    `json:"emotional_weight"` // 0.0-1.0
	ContextTags        []string   `json:"context_tags,omitempty"`
	ConsolidationScore float64    `json:"consolidation_score"` // 0.0-1.0
	Location           string     `json:"location,omitempty"`

	// DecayFactor is the most recently computed decay factor. It is
	// persisted for inspection but recomputed from "now" on every read.
	DecayFactor float64 `json:"decay_factor"`
}

// StabilityFactor is the resistance to decay contributed by importance and
// emotional weight.
func (e *ShortTermEntry) StabilityFactor() float64 {
	return (e.Importance + e.EmotionalWeight) / 2.0
}

// ComputeDecayFactor returns the decay factor at the given instant:
//
//	exp(-rate * hoursSinceLastAccess) * (1 + stabilityFactor)
//
// floored at 0.1 and capped at 1.0. The factor is a function of "now" and
// must never be cached across reads.
func (e *ShortTermEntry) ComputeDecayFactor(now time.Time) float64 {
	hours := now.Sub(e.AccessedAt()).Hours()
	if hours < 0 {
		hours = 0
	}
	factor := math.Exp(-e.MemoryType.DecayRate()*hours) * (1 + e.StabilityFactor())
	if factor < decayFactorFloor {
		return decayFactorFloor
	}
	if factor > 1.0 {
		return 1.0
	}
	return factor
}

// CurrentStrength is the entry's retrievability at the given instant.
func (e *ShortTermEntry) CurrentStrength(now time.Time) float64 {
	return e.ComputeDecayFactor(now) * e.Importance
}

// ShouldConsolidate reports whether the entry is ready for promotion to the
// long-term store.
func (e *ShortTermEntry) ShouldConsolidate(now time.Time) bool {
	return e.ConsolidationScore > 0.7 && e.CurrentStrength(now) > 0.5
}
