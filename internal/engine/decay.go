// Package engine implements the consolidation core: the short-term and
// long-term stores and the engine that promotes, merges, and mines entries
// between them.
package engine

import (
	"math"
	"time"
)

const (
	// timeDecayRatePerDay is the linear decay rate applied per elapsed day.
	timeDecayRatePerDay = 0.01

	// recencyFloor is the minimum recency factor; even ancient memories
	// keep a sliver of retrievability.
	recencyFloor = 0.1

	// emotionalMultiplier boosts strength for non-neutral memories.
	emotionalMultiplier = 1.5

	// accessBoostPerAccess grows the access multiplier, capped at
	// maxAccessMultiplier.
	accessBoostPerAccess = 0.1
	maxAccessMultiplier  = 2.0
)

// TimeDecayRate returns the linear decay accumulated over elapsedDays at
// 1% per day. Negative elapsed time contributes nothing.
func TimeDecayRate(elapsedDays float64) float64 {
	if elapsedDays <= 0 {
		return 0
	}
	return timeDecayRatePerDay * elapsedDays
}

// Strength composes the retrieval strength of a memory from its importance,
// decay state, emotional weighting, access history, and age. It is pure and
// deterministic given its inputs; both episodic strength and note freshness
// use this one formula.
//
//	strength = importance * vividity * recency * emotional * access / 2
//
// where vividity = 1 - decay, recency = max(0.1, 1 - age/halfLife),
// emotional = 1.5 when emotionalWeight is non-neutral (else 1.0), and
// access = min(1 + 0.1*accessCount, 2.0).
func Strength(importance, decay, emotionalWeight float64, accessCount int, age, halfLife time.Duration) float64 {
	vividity := 1.0 - decay
	if vividity < 0 {
		vividity = 0
	}

	recency := recencyFloor
	if halfLife > 0 {
		r := 1.0 - age.Seconds()/halfLife.Seconds()
		if r > recency {
			recency = r
		}
	}

	emotional := 1.0
	if emotionalWeight != 0 {
		emotional = emotionalMultiplier
	}

	access := math.Min(1.0+accessBoostPerAccess*float64(accessCount), maxAccessMultiplier)

	return importance * vividity * recency * emotional * access / 2.0
}
