package types_test

import (
	"testing"
	"time"

	"github.com/memtier/memtier/pkg/types"
)

// TestEffectiveImportanceClampsAtOne verifies the critical-priority clamp:
// 0.5 importance at a 2.0 multiplier yields exactly 1.0.
func TestEffectiveImportanceClampsAtOne(t *testing.T) {
	item := types.WorkingItem{
		MemoryRecord: types.MemoryRecord{Importance: 0.5},
		Priority:     types.PriorityCritical,
	}

	if got := item.EffectiveImportance(); got != 1.0 {
		t.Errorf("expected effective importance 1.0, got %f", got)
	}
}

// TestEffectiveImportanceByPriority checks each multiplier.
func TestEffectiveImportanceByPriority(t *testing.T) {
	cases := []struct {
		priority types.Priority
		want     float64
	}{
		{types.PriorityLow, 0.2},
		{types.PriorityNormal, 0.4},
		{types.PriorityHigh, 0.6},
		{types.PriorityCritical, 0.8},
		{types.Priority("unknown"), 0.4},
	}

	for _, tc := range cases {
		t.Run(string(tc.priority), func(t *testing.T) {
			item := types.WorkingItem{
				MemoryRecord: types.MemoryRecord{Importance: 0.4},
				Priority:     tc.priority,
			}
			got := item.EffectiveImportance()
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("priority %s: expected %f, got %f", tc.priority, tc.want, got)
			}
		})
	}
}

// TestTimeOfDayBuckets verifies the five wall-clock buckets, including the
// boundary hours.
func TestTimeOfDayBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want types.TimeOfDay
	}{
		{4, types.Night},
		{5, types.EarlyMorning},
		{8, types.EarlyMorning},
		{9, types.Morning},
		{11, types.Morning},
		{12, types.Afternoon},
		{16, types.Afternoon},
		{17, types.Evening},
		{20, types.Evening},
		{21, types.Night},
		{0, types.Night},
	}

	for _, tc := range cases {
		ts := time.Date(2025, 6, 1, tc.hour, 30, 0, 0, time.Local)
		if got := types.TimeOfDayFor(ts); got != tc.want {
			t.Errorf("hour %d: expected %s, got %s", tc.hour, tc.want, got)
		}
	}
}
