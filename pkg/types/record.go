// Package types defines the shared data model for the tiered memory system:
// the MemoryRecord base, working-set items, short-term entries, the four
// long-term entry kinds, and the consolidation event schema.
package types

import "time"

const (
	// accessImportanceBoost is added to Importance on every access.
	accessImportanceBoost = 0.05

	// accessDecayRelief is subtracted from Decay on every access.
	accessDecayRelief = 0.1

	// decayRatePerDay is the linear decay added per elapsed day.
	decayRatePerDay = 0.01
)

// MemoryRecord is the common base of every stored memory unit. It carries
// identity, timing, and the importance/decay pair that all tiers share.
//
// Importance and Decay are always kept in [0.0, 1.0]. Records are mutated
// only through RecordAccess and ApplyDecay; containers evict records but
// never destroy or rewrite them.
type MemoryRecord struct {
	ID             string     `json:"id"`                         // Unique identifier
	CreatedAt      time.Time  `json:"created_at"`                 // When the record entered the system
	Importance     float64    `json:"importance"`                 // Importance score (0.0-1.0)
	AccessCount    int        `json:"access_count"`               // Number of times the record has been accessed
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"` // Timestamp of most recent access
	Decay          float64    `json:"decay"`                      // Decay level (0.0 = fresh, 1.0 = fully decayed)
}

// RecordAccess marks the record as accessed at the given instant.
// Access strengthens: importance rises by 0.05 and decay drops by 0.1,
// both clamped to [0, 1].
func (r *MemoryRecord) RecordAccess(now time.Time) {
	r.AccessCount++
	r.LastAccessedAt = &now
	r.Importance = Clamp01(r.Importance + accessImportanceBoost)
	r.Decay = Clamp01(r.Decay - accessDecayRelief)
}

// ApplyDecay weakens the record for the given elapsed duration: decay grows
// linearly at 1% per day and importance shrinks at half that rate.
func (r *MemoryRecord) ApplyDecay(elapsed time.Duration) {
	days := elapsed.Hours() / 24.0
	if days <= 0 {
		return
	}
	rate := decayRatePerDay * days
	r.Decay = Clamp01(r.Decay + rate)
	r.Importance = Clamp01(r.Importance - rate/2.0)
}

// AccessedAt returns the reference timestamp for recency calculations.
// It prefers LastAccessedAt and falls back to CreatedAt.
func (r *MemoryRecord) AccessedAt() time.Time {
	if r.LastAccessedAt != nil && !r.LastAccessedAt.IsZero() {
		return *r.LastAccessedAt
	}
	return r.CreatedAt
}

// Clamp01 clamps v to the closed interval [0.0, 1.0].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
