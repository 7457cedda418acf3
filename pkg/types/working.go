package types

import "time"

// ItemKind classifies a working-set item by what it represents.
type ItemKind string

const (
	KindEntityReference        ItemKind = "entity-reference"
	KindConceptualInsight      ItemKind = "conceptual-insight"
	KindTemporalContext        ItemKind = "temporal-context"
	KindRelationshipHypothesis ItemKind = "relationship-hypothesis"
	KindOpenQuestion           ItemKind = "open-question"
	KindPatternObservation     ItemKind = "pattern-observation"
)

// Priority ranks a working item's urgency. Each level carries a fixed
// multiplier applied to the item's importance.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Multiplier returns the importance multiplier for the priority level.
// Unknown values are treated as normal.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityHigh:
		return 1.5
	case PriorityCritical:
		return 2.0
	default:
		return 1.0
	}
}

// WorkingItem is a single unit in a session's working set.
//
// RelatedEntityID and RelatedRecordID are weak references: opaque
// identifiers resolved against external stores, never owned objects.
type WorkingItem struct {
	MemoryRecord

	Content         string   `json:"content"`                     // Extracted content text
	Kind            ItemKind `json:"kind"`                        // What this item represents
	RelatedEntityID string   `json:"related_entity_id,omitempty"` // Weak reference into the external entity store
	RelatedRecordID string   `json:"related_record_id,omitempty"` // Weak reference to another memory record
	Priority        Priority `json:"priority"`                    // Urgency level
}

// EffectiveImportance is the item's importance scaled by its priority
// multiplier, clamped to 1.0.
func (w *WorkingItem) EffectiveImportance() float64 {
	return Clamp01(w.Importance * w.Priority.Multiplier())
}

// Interaction is one entry in a session's rolling interaction log.
type Interaction struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`                 // e.g. "voice", "text", "lookup"
	Content   string    `json:"content"`              // Raw interaction text
	EntityIDs []string  `json:"entity_ids,omitempty"` // Entities referenced by the interaction
}

// TemporaryBinding is a provisional subject-predicate-object triple held by
// a session. Bindings are session-owned and discarded at session end.
type TemporaryBinding struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"` // 0.0-1.0
}

// TimeOfDay is the coarse wall-clock bucket a session was created in.
type TimeOfDay string

const (
	EarlyMorning TimeOfDay = "early-morning" // 05:00-09:00
	Morning      TimeOfDay = "morning"       // 09:00-12:00
	Afternoon    TimeOfDay = "afternoon"     // 12:00-17:00
	Evening      TimeOfDay = "evening"       // 17:00-21:00
	Night        TimeOfDay = "night"         // everything else
)

// TimeOfDayFor buckets the given instant by its wall-clock hour.
func TimeOfDayFor(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 9:
		return EarlyMorning
	case h >= 9 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}
