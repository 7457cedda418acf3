package types_test

import (
	"testing"
	"time"

	"github.com/memtier/memtier/pkg/types"
)

func newEntry(mt types.MemoryType, importance, emotional float64, lastAccess time.Time) *types.ShortTermEntry {
	return &types.ShortTermEntry{
		MemoryRecord: types.MemoryRecord{
			Importance:     importance,
			CreatedAt:      lastAccess,
			LastAccessedAt: &lastAccess,
		},
		MemoryType:      mt,
		EmotionalWeight: emotional,
	}
}

// TestDecayRatesByType verifies the per-type decay constants.
func TestDecayRatesByType(t *testing.T) {
	cases := []struct {
		mt   types.MemoryType
		want float64
	}{
		{types.MemoryEpisodic, 0.1},
		{types.MemorySemantic, 0.05},
		{types.MemoryProcedural, 0.02},
		{types.MemoryWorking, 0.5},
		{types.MemoryType("bogus"), 0.1},
	}

	for _, tc := range cases {
		if got := tc.mt.DecayRate(); got != tc.want {
			t.Errorf("%s: expected rate %f, got %f", tc.mt, tc.want, got)
		}
	}
}

// TestCurrentStrengthMonotonicDecay verifies that without access, strength
// at a later instant never exceeds strength at an earlier one.
func TestCurrentStrengthMonotonicDecay(t *testing.T) {
	base := time.Now()
	e := newEntry(types.MemoryEpisodic, 0.8, 0.0, base)

	prev := e.CurrentStrength(base)
	for h := 1; h <= 72; h++ {
		now := base.Add(time.Duration(h) * time.Hour)
		cur := e.CurrentStrength(now)
		if cur > prev {
			t.Fatalf("strength increased from %f to %f at hour %d", prev, cur, h)
		}
		prev = cur
	}
}

// TestDecayFactorFloor verifies that even ancient entries retain the 0.1
// floor.
func TestDecayFactorFloor(t *testing.T) {
	old := time.Now().Add(-90 * 24 * time.Hour)
	e := newEntry(types.MemoryWorking, 0.2, 0.0, old)

	if got := e.ComputeDecayFactor(time.Now()); got != 0.1 {
		t.Errorf("expected floored decay factor 0.1, got %f", got)
	}
}

// TestDecayFactorCappedAtOne verifies that high stability cannot push the
// factor above 1.0 for a freshly accessed entry.
func TestDecayFactorCappedAtOne(t *testing.T) {
	now := time.Now()
	e := newEntry(types.MemoryEpisodic, 1.0, 1.0, now)

	if got := e.ComputeDecayFactor(now); got != 1.0 {
		t.Errorf("expected capped decay factor 1.0, got %f", got)
	}
}

// TestShouldConsolidateThresholds checks both gates of the predicate.
func TestShouldConsolidateThresholds(t *testing.T) {
	now := time.Now()

	// Strong and scored: eligible.
	e := newEntry(types.MemoryEpisodic, 0.9, 0.5, now)
	e.ConsolidationScore = 0.8
	if !e.ShouldConsolidate(now) {
		t.Error("expected strong, high-scored entry to be eligible")
	}

	// Low score blocks even a strong entry.
	e.ConsolidationScore = 0.7
	if e.ShouldConsolidate(now) {
		t.Error("score at exactly 0.7 must not be eligible")
	}

	// Weak strength blocks a high score.
	weak := newEntry(types.MemoryWorking, 0.3, 0.0, now.Add(-24*time.Hour))
	weak.ConsolidationScore = 0.9
	if weak.ShouldConsolidate(now) {
		t.Error("expected decayed entry to be ineligible")
	}
}
