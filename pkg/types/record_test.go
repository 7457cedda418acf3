package types_test

import (
	"testing"
	"time"

	"github.com/memtier/memtier/pkg/types"
)

// TestRecordAccessStrengthens verifies that an access bumps the counters and
// moves importance up and decay down.
func TestRecordAccessStrengthens(t *testing.T) {
	now := time.Now()
	r := types.MemoryRecord{Importance: 0.5, Decay: 0.5}

	r.RecordAccess(now)

	if r.AccessCount != 1 {
		t.Errorf("expected AccessCount 1, got %d", r.AccessCount)
	}
	if r.LastAccessedAt == nil || !r.LastAccessedAt.Equal(now) {
		t.Errorf("expected LastAccessedAt %v, got %v", now, r.LastAccessedAt)
	}
	if r.Importance != 0.55 {
		t.Errorf("expected Importance 0.55, got %f", r.Importance)
	}
	if r.Decay != 0.4 {
		t.Errorf("expected Decay 0.4, got %f", r.Decay)
	}
}

// TestRecordAccessNeverDecreasesImportance verifies the reinforcement
// property: N accesses increase AccessCount by exactly N and importance is
// monotonically non-decreasing throughout.
func TestRecordAccessNeverDecreasesImportance(t *testing.T) {
	r := types.MemoryRecord{Importance: 0.9}
	now := time.Now()

	prev := r.Importance
	for i := 0; i < 10; i++ {
		r.RecordAccess(now.Add(time.Duration(i) * time.Minute))
		if r.Importance < prev {
			t.Fatalf("importance decreased from %f to %f on access %d", prev, r.Importance, i+1)
		}
		prev = r.Importance
	}

	if r.AccessCount != 10 {
		t.Errorf("expected AccessCount 10, got %d", r.AccessCount)
	}
	if r.Importance > 1.0 {
		t.Errorf("importance exceeded clamp: %f", r.Importance)
	}
}

// TestRecordAccessClampsBounds verifies that importance and decay stay in
// [0, 1] at the extremes.
func TestRecordAccessClampsBounds(t *testing.T) {
	r := types.MemoryRecord{Importance: 1.0, Decay: 0.0}
	r.RecordAccess(time.Now())

	if r.Importance != 1.0 {
		t.Errorf("expected Importance clamped to 1.0, got %f", r.Importance)
	}
	if r.Decay != 0.0 {
		t.Errorf("expected Decay clamped to 0.0, got %f", r.Decay)
	}
}

// TestApplyDecayRates verifies the 1%/day decay rate and the half-rate
// importance loss.
func TestApplyDecayRates(t *testing.T) {
	r := types.MemoryRecord{Importance: 0.5, Decay: 0.0}

	r.ApplyDecay(10 * 24 * time.Hour)

	if diff := r.Decay - 0.1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected Decay 0.1 after 10 days, got %f", r.Decay)
	}
	if diff := r.Importance - 0.45; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected Importance 0.45 after 10 days, got %f", r.Importance)
	}
}

// TestApplyDecayNegativeElapsedIsNoop verifies that a non-positive elapsed
// duration leaves the record untouched.
func TestApplyDecayNegativeElapsedIsNoop(t *testing.T) {
	r := types.MemoryRecord{Importance: 0.5, Decay: 0.2}
	r.ApplyDecay(-time.Hour)

	if r.Importance != 0.5 || r.Decay != 0.2 {
		t.Errorf("expected no change, got importance=%f decay=%f", r.Importance, r.Decay)
	}
}

// TestApplyDecayClamps verifies that long durations saturate at the bounds.
func TestApplyDecayClamps(t *testing.T) {
	r := types.MemoryRecord{Importance: 0.3, Decay: 0.9}
	r.ApplyDecay(365 * 24 * time.Hour)

	if r.Decay != 1.0 {
		t.Errorf("expected Decay clamped to 1.0, got %f", r.Decay)
	}
	if r.Importance != 0.0 {
		t.Errorf("expected Importance clamped to 0.0, got %f", r.Importance)
	}
}

// TestAccessedAtPrefersLastAccess verifies the recency reference fallback.
func TestAccessedAtPrefersLastAccess(t *testing.T) {
	created := time.Now().Add(-48 * time.Hour)
	accessed := time.Now().Add(-time.Hour)

	r := types.MemoryRecord{CreatedAt: created}
	if !r.AccessedAt().Equal(created) {
		t.Errorf("expected CreatedAt fallback, got %v", r.AccessedAt())
	}

	r.LastAccessedAt = &accessed
	if !r.AccessedAt().Equal(accessed) {
		t.Errorf("expected LastAccessedAt, got %v", r.AccessedAt())
	}
}
