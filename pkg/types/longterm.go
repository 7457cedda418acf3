package types

import "time"

// Category identifies one of the four long-term collections.
type Category string

const (
	CategoryEpisodic   Category = "episodic"
	CategorySemantic   Category = "semantic"
	CategoryProcedural Category = "procedural"
	CategoryFact       Category = "fact"
)

// ConsolidationPriority is the fixed weight used to order promotion when
// multiple short-term entries compete for a capacity-limited cycle.
// Facts and semantic concepts outrank raw episodes.
func (c Category) ConsolidationPriority() float64 {
	switch c {
	case CategoryFact:
		return 1.0
	case CategorySemantic:
		return 0.8
	case CategoryProcedural:
		return 0.6
	case CategoryEpisodic:
		return 0.4
	default:
		return 0.4
	}
}

const (
	// wellEstablishedStrength is the StrengthScore a long-term entry must
	// exceed to count as well established.
	wellEstablishedStrength = 0.8

	// wellEstablishedAccesses is the AccessCount a long-term entry must
	// exceed to count as well established.
	wellEstablishedAccesses = 5

	// crossRefReinforcement is added to StrengthScore for every new
	// cross-reference.
	crossRefReinforcement = 0.05
)

// LongTermEntry is the shared state of every long-term memory variant.
// Cross-references are weak, unidirectional links (entry IDs); adding
// A -> B never adds B -> A.
type LongTermEntry struct {
	MemoryRecord

	Category        Category `json:"category"`
	StrengthScore   float64  `json:"strength_score"`             // 0.0-1.0, reinforced on access and cross-reference
	CrossReferences []string `json:"cross_references,omitempty"` // IDs of other long-term entries
	RetrievalCues   []string `json:"retrieval_cues,omitempty"`   // Keywords that surface this entry
}

// Reinforce records an access and strengthens the entry.
func (l *LongTermEntry) Reinforce(now time.Time) {
	l.RecordAccess(now)
	l.StrengthScore = Clamp01(l.StrengthScore + accessImportanceBoost)
}

// AddCrossReference links this entry to another long-term entry by ID and
// reinforces strength. Duplicate links are ignored. The link is stored
// unidirectionally; callers wanting symmetry must add the reverse link
// themselves.
func (l *LongTermEntry) AddCrossReference(id string) {
	if id == "" || id == l.ID {
		return
	}
	for _, ref := range l.CrossReferences {
		if ref == id {
			return
		}
	}
	l.CrossReferences = append(l.CrossReferences, id)
	l.StrengthScore = Clamp01(l.StrengthScore + crossRefReinforcement)
}

// IsWellEstablished reports whether the entry is trustworthy enough for
// high-confidence contexts (strength > 0.8 and more than 5 accesses).
func (l *LongTermEntry) IsWellEstablished() bool {
	return l.StrengthScore > wellEstablishedStrength && l.AccessCount > wellEstablishedAccesses
}

// EpisodicEntry is a long-term record of a specific episode. Merged episodes
// accumulate entity IDs and source references instead of duplicating.
type EpisodicEntry struct {
	LongTermEntry

	Summary           string    `json:"summary"`
	OccurredAt        time.Time `json:"occurred_at"`
	Location          string    `json:"location,omitempty"`
	InvolvedEntityIDs []string  `json:"involved_entity_ids,omitempty"` // Weak references
	SourceNoteIDs     []string  `json:"source_note_ids,omitempty"`     // Short-term entries merged into this episode
	EmotionalValence  float64   `json:"emotional_valence"`             // 0.0-1.0
}

// SemanticConcept is a recurring idea mined from episodes.
type SemanticConcept struct {
	LongTermEntry

	Name        string   `json:"name"`
	Strength    float64  `json:"strength"`               // min(1.0, frequency/10)
	EvidenceIDs []string `json:"evidence_ids,omitempty"` // Episode IDs that contributed
}

// ProcedurePattern is a recurring time-of-day behavior mined from episodes.
type ProcedurePattern struct {
	LongTermEntry

	Name             string   `json:"name"`
	WindowStartHour  int      `json:"window_start_hour"` // 3-hour-of-day bucket start (0, 3, 6, ...)
	Steps            []string `json:"steps,omitempty"`   // Episode summaries in the window
	Strength         float64  `json:"strength"`          // min(1.0, count/10)
	SourceEpisodeIDs []string `json:"source_episode_ids,omitempty"`
}

// ConsolidatedFact is a distilled, high-confidence statement.
type ConsolidatedFact struct {
	LongTermEntry

	Statement  string  `json:"statement"`
	Confidence float64 `json:"confidence"` // 0.0-1.0
}
