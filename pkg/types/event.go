package types

import "time"

// TriggerReason records why a consolidation cycle ran. Each reason carries a
// fixed priority rank used only to order competing scheduling requests; it
// never alters merge or extraction logic.
type TriggerReason string

const (
	TriggerAutomatic           TriggerReason = "automatic"
	TriggerManual              TriggerReason = "manual"
	TriggerCapacityLimit       TriggerReason = "capacity-limit"
	TriggerTimeThreshold       TriggerReason = "time-threshold"
	TriggerImportanceThreshold TriggerReason = "importance-threshold"
	TriggerSystemOptimization  TriggerReason = "system-optimization"
	TriggerUserFeedback        TriggerReason = "user-feedback"
	TriggerPeriodicMaintenance TriggerReason = "periodic-maintenance"
)

// SchedulingPriority returns the trigger's rank: lower is more urgent.
func (t TriggerReason) SchedulingPriority() int {
	switch t {
	case TriggerManual:
		return 0
	case TriggerUserFeedback:
		return 1
	case TriggerCapacityLimit:
		return 2
	case TriggerImportanceThreshold:
		return 3
	case TriggerTimeThreshold:
		return 4
	case TriggerAutomatic:
		return 5
	case TriggerSystemOptimization:
		return 6
	case TriggerPeriodicMaintenance:
		return 7
	default:
		return 8
	}
}

// Valid reports whether the trigger is one of the defined reasons.
func (t TriggerReason) Valid() bool {
	switch t {
	case TriggerAutomatic, TriggerManual, TriggerCapacityLimit,
		TriggerTimeThreshold, TriggerImportanceThreshold,
		TriggerSystemOptimization, TriggerUserFeedback,
		TriggerPeriodicMaintenance:
		return true
	}
	return false
}

// ConsolidationEvent is the telemetry record emitted once per consolidation
// cycle. It is the engine's sole external-facing telemetry surface; the
// engine does not interpret it further.
type ConsolidationEvent struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	SourceType     MemoryType    `json:"source_type"`
	TargetCategory Category      `json:"target_category"`
	Trigger        TriggerReason `json:"trigger"`
	UserInitiated  bool          `json:"user_initiated"`

	ItemsProcessed int `json:"items_processed"`
	Successes      int `json:"successes"`
	Failures       int `json:"failures"`

	EpisodesMerged    int `json:"episodes_merged"`
	EpisodesInserted  int `json:"episodes_inserted"`
	ConceptsExtracted int `json:"concepts_extracted"`
	PatternsExtracted int `json:"patterns_extracted"`

	AvgImportance float64 `json:"avg_importance"` // Mean importance of the processed batch
	AvgConfidence float64 `json:"avg_confidence"` // Mean consolidation score of the processed batch
}
