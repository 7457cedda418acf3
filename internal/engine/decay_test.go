package engine_test

import (
	"testing"
	"time"

	"github.com/memtier/memtier/internal/engine"
)

// TestTimeDecayRate verifies the 1%/day linear rate and the zero floor.
func TestTimeDecayRate(t *testing.T) {
	cases := []struct {
		days float64
		want float64
	}{
		{0, 0},
		{-5, 0},
		{1, 0.01},
		{10, 0.1},
		{250, 2.5},
	}

	for _, tc := range cases {
		if got := engine.TimeDecayRate(tc.days); got != tc.want {
			t.Errorf("TimeDecayRate(%f): expected %f, got %f", tc.days, tc.want, got)
		}
	}
}

// TestStrengthDeterministic verifies the composite is pure: identical inputs
// always produce identical outputs.
func TestStrengthDeterministic(t *testing.T) {
	a := engine.Strength(0.8, 0.2, 0.5, 3, 12*time.Hour, 7*24*time.Hour)
	b := engine.Strength(0.8, 0.2, 0.5, 3, 12*time.Hour, 7*24*time.Hour)
	if a != b {
		t.Errorf("expected deterministic strength, got %f and %f", a, b)
	}
}

// TestStrengthComposition checks each factor of the formula at a known point:
// importance 0.8, decay 0.2 (vividity 0.8), age = half the half-life
// (recency 0.5), emotional (1.5), two accesses (1.2), divided by 2.
func TestStrengthComposition(t *testing.T) {
	got := engine.Strength(0.8, 0.2, 0.9, 2, 12*time.Hour, 24*time.Hour)
	want := 0.8 * 0.8 * 0.5 * 1.5 * 1.2 / 2.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

// TestStrengthRecencyFloor verifies ancient memories keep the 0.1 recency
// floor rather than going to zero.
func TestStrengthRecencyFloor(t *testing.T) {
	aged := engine.Strength(1.0, 0, 0, 0, 1000*24*time.Hour, 24*time.Hour)
	want := 1.0 * 1.0 * 0.1 * 1.0 * 1.0 / 2.0
	if diff := aged - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected floored strength %f, got %f", want, aged)
	}
}

// TestStrengthAccessCap verifies the access multiplier saturates at 2.0.
func TestStrengthAccessCap(t *testing.T) {
	ten := engine.Strength(0.5, 0, 0, 10, 0, 24*time.Hour)
	hundred := engine.Strength(0.5, 0, 0, 100, 0, 24*time.Hour)
	if ten != hundred {
		t.Errorf("expected access multiplier capped: %f vs %f", ten, hundred)
	}
}

// TestStrengthEmotionalMultiplier verifies a non-neutral emotional weight
// scales strength by exactly 1.5.
func TestStrengthEmotionalMultiplier(t *testing.T) {
	neutral := engine.Strength(0.5, 0, 0, 0, 0, 24*time.Hour)
	loaded := engine.Strength(0.5, 0, 0.3, 0, 0, 24*time.Hour)
	if diff := loaded - neutral*1.5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected 1.5x emotional boost: neutral=%f loaded=%f", neutral, loaded)
	}
}
