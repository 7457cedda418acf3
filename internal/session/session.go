// Package session implements the working-memory tier: a bounded,
// session-scoped container of typed items with an attention focus and a
// rolling interaction log.
//
// All operations are total over valid input; nothing here returns an error.
// Capacity overflow is resolved by silent eviction — working memory is
// ephemeral by contract.
package session

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/memtier/memtier/pkg/types"
)

const (
	// DefaultMaxWorkingSetSize bounds the working set.
	DefaultMaxWorkingSetSize = 20

	// DefaultInteractionLogCap bounds the rolling interaction log.
	DefaultInteractionLogCap = 50
)

// Config tunes a session's capacity bounds.
type Config struct {
	MaxWorkingSetSize int
	InteractionLogCap int
}

// DefaultConfig returns the standard session bounds.
func DefaultConfig() Config {
	return Config{
		MaxWorkingSetSize: DefaultMaxWorkingSetSize,
		InteractionLogCap: DefaultInteractionLogCap,
	}
}

// WorkingSession owns a working set of items, an entity focus, a rolling
// interaction log, and provisional bindings. Items and bindings are
// exclusively owned by the session and dropped when it ends or evicts;
// entity and record references held by items are weak identifiers only.
//
// A session has a single logical owner; callers driving it from multiple
// goroutines must serialize writes themselves.
type WorkingSession struct {
	ID          string
	CreatedAt   time.Time
	IsActive    bool
	ContextType string
	Location    string
	TimeOfDay   types.TimeOfDay

	config             Config
	workingSet         []*types.WorkingItem
	focusedEntityIDs   map[string]struct{}
	recentInteractions []types.Interaction
	temporaryBindings  []types.TemporaryBinding
}

// Summary is a read-only snapshot of a session, consumed by the
// consolidation engine and by external collaborators assembling prompts.
type Summary struct {
	SessionID        string          `json:"session_id"`
	ContextType      string          `json:"context_type"`
	Location         string          `json:"location,omitempty"`
	TimeOfDay        types.TimeOfDay `json:"time_of_day"`
	FocusedEntityIDs []string        `json:"focused_entity_ids,omitempty"`
	WorkingSetSize   int             `json:"working_set_size"`
	InteractionCount int             `json:"interaction_count"`
	BindingCount     int             `json:"binding_count"`
}

// New creates an active session. TimeOfDay is derived once from the
// creation instant's wall-clock hour.
func New(contextType, location string, cfg Config, now time.Time) *WorkingSession {
	if cfg.MaxWorkingSetSize < 1 {
		cfg.MaxWorkingSetSize = DefaultMaxWorkingSetSize
	}
	if cfg.InteractionLogCap < 1 {
		cfg.InteractionLogCap = DefaultInteractionLogCap
	}
	return &WorkingSession{
		ID:               uuid.NewString(),
		CreatedAt:        now,
		IsActive:         true,
		ContextType:      contextType,
		Location:         location,
		TimeOfDay:        types.TimeOfDayFor(now),
		config:           cfg,
		focusedEntityIDs: make(map[string]struct{}),
	}
}

// AddToWorkingSet appends the item. If the set exceeds its capacity the
// least-recently-accessed items are evicted (stable order on ties) until
// the set is back at capacity. Eviction is silent and lossy.
func (s *WorkingSession) AddToWorkingSet(item *types.WorkingItem) {
	if item == nil {
		return
	}
	s.workingSet = append(s.workingSet, item)

	if len(s.workingSet) <= s.config.MaxWorkingSetSize {
		return
	}

	sort.SliceStable(s.workingSet, func(i, j int) bool {
		return s.workingSet[i].AccessedAt().Before(s.workingSet[j].AccessedAt())
	})
	excess := len(s.workingSet) - s.config.MaxWorkingSetSize
	s.workingSet = s.workingSet[excess:]
}

// FocusOn replaces the focused entity set. Every working item whose related
// entity is in the new focus is accessed — focus reinforces relevance.
func (s *WorkingSession) FocusOn(entityIDs []string, now time.Time) {
	s.focusedEntityIDs = make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		if id == "" {
			continue
		}
		s.focusedEntityIDs[id] = struct{}{}
	}

	for _, item := range s.workingSet {
		if item.RelatedEntityID == "" {
			continue
		}
		if _, ok := s.focusedEntityIDs[item.RelatedEntityID]; ok {
			item.RecordAccess(now)
		}
	}
}

// RecordInteraction appends to the interaction log, evicting the oldest
// entries by timestamp when the log exceeds its cap.
func (s *WorkingSession) RecordInteraction(in types.Interaction) {
	s.recentInteractions = append(s.recentInteractions, in)

	if len(s.recentInteractions) <= s.config.InteractionLogCap {
		return
	}

	sort.SliceStable(s.recentInteractions, func(i, j int) bool {
		return s.recentInteractions[i].Timestamp.Before(s.recentInteractions[j].Timestamp)
	})
	excess := len(s.recentInteractions) - s.config.InteractionLogCap
	s.recentInteractions = s.recentInteractions[excess:]
}

// AddBinding records a provisional subject-predicate-object triple.
// Bindings live only as long as the session.
func (s *WorkingSession) AddBinding(b types.TemporaryBinding) {
	b.Confidence = types.Clamp01(b.Confidence)
	s.temporaryBindings = append(s.temporaryBindings, b)
}

// WorkingSet returns the current working set. The returned slice is a copy;
// the items themselves are shared.
func (s *WorkingSession) WorkingSet() []*types.WorkingItem {
	out := make([]*types.WorkingItem, len(s.workingSet))
	copy(out, s.workingSet)
	return out
}

// InteractionsBefore returns interactions with a timestamp strictly before
// the cutoff. Used by the consolidation engine to harvest aged activity.
func (s *WorkingSession) InteractionsBefore(cutoff time.Time) []types.Interaction {
	var out []types.Interaction
	for _, in := range s.recentInteractions {
		if in.Timestamp.Before(cutoff) {
			out = append(out, in)
		}
	}
	return out
}

// DrainInteractionsBefore removes and returns interactions with a timestamp
// strictly before the cutoff. The consolidation engine drains (rather than
// copies) aged activity so repeated cycles never harvest it twice.
func (s *WorkingSession) DrainInteractionsBefore(cutoff time.Time) []types.Interaction {
	var drained, kept []types.Interaction
	for _, in := range s.recentInteractions {
		if in.Timestamp.Before(cutoff) {
			drained = append(drained, in)
		} else {
			kept = append(kept, in)
		}
	}
	s.recentInteractions = kept
	return drained
}

// ContextSummary returns a read-only snapshot of the session. It never
// mutates state.
func (s *WorkingSession) ContextSummary() Summary {
	focused := make([]string, 0, len(s.focusedEntityIDs))
	for id := range s.focusedEntityIDs {
		focused = append(focused, id)
	}
	sort.Strings(focused)

	return Summary{
		SessionID:        s.ID,
		ContextType:      s.ContextType,
		Location:         s.Location,
		TimeOfDay:        s.TimeOfDay,
		FocusedEntityIDs: focused,
		WorkingSetSize:   len(s.workingSet),
		InteractionCount: len(s.recentInteractions),
		BindingCount:     len(s.temporaryBindings),
	}
}

// End deactivates the session and discards its owned state: working items,
// bindings, focus, and the interaction log.
func (s *WorkingSession) End() {
	s.IsActive = false
	s.workingSet = nil
	s.temporaryBindings = nil
	s.recentInteractions = nil
	s.focusedEntityIDs = make(map[string]struct{})
}
