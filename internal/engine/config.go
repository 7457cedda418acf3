package engine

import (
	"fmt"
	"time"
)

// Config holds the tunables of the consolidation engine.
type Config struct {
	// MergeWindow bounds how far apart two episodes may occur and still be
	// merge candidates (default: 24h).
	MergeWindow time.Duration

	// EntitySimilarityThreshold is the Jaccard overlap two episodes must
	// exceed to merge (default: 0.5).
	EntitySimilarityThreshold float64

	// SemanticLookback is the window over which episodes feed concept
	// extraction (default: 30 days).
	SemanticLookback time.Duration

	// MinConceptFrequency is the number of distinct episodes an entity must
	// appear in to become a concept (default: 3).
	MinConceptFrequency int

	// MinPatternCount is the number of episodes a time-of-day window needs
	// to become a procedure pattern (default: 3).
	MinPatternCount int

	// PatternWindowHours is the width of the fixed time-of-day buckets used
	// for procedural mining (default: 3).
	PatternWindowHours int

	// InteractionMinAge is how old a session interaction must be before a
	// cycle harvests it into the short-term store (default: 10m).
	InteractionMinAge time.Duration

	// MaxBatchSize caps how many eligible entries one cycle promotes;
	// 0 means unlimited. When limited, entries are taken in descending
	// current-strength order.
	MaxBatchSize int
}

// DefaultConfig returns a Config with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MergeWindow:               24 * time.Hour,
		EntitySimilarityThreshold: 0.5,
		SemanticLookback:          30 * 24 * time.Hour,
		MinConceptFrequency:       3,
		MinPatternCount:           3,
		PatternWindowHours:        3,
		InteractionMinAge:         10 * time.Minute,
		MaxBatchSize:              0,
	}
}

// Validate checks if the config is usable.
func (c *Config) Validate() error {
	if c.MergeWindow <= 0 {
		return fmt.Errorf("MergeWindow must be > 0, got %v", c.MergeWindow)
	}
	if c.EntitySimilarityThreshold <= 0 || c.EntitySimilarityThreshold >= 1 {
		return fmt.Errorf("EntitySimilarityThreshold must be in (0, 1), got %f", c.EntitySimilarityThreshold)
	}
	if c.SemanticLookback <= 0 {
		return fmt.Errorf("SemanticLookback must be > 0, got %v", c.SemanticLookback)
	}
	if c.MinConceptFrequency < 1 {
		return fmt.Errorf("MinConceptFrequency must be >= 1, got %d", c.MinConceptFrequency)
	}
	if c.MinPatternCount < 1 {
		return fmt.Errorf("MinPatternCount must be >= 1, got %d", c.MinPatternCount)
	}
	if c.PatternWindowHours < 1 || 24%c.PatternWindowHours != 0 {
		return fmt.Errorf("PatternWindowHours must divide 24 evenly, got %d", c.PatternWindowHours)
	}
	if c.InteractionMinAge < 0 {
		return fmt.Errorf("InteractionMinAge must be >= 0, got %v", c.InteractionMinAge)
	}
	if c.MaxBatchSize < 0 {
		return fmt.Errorf("MaxBatchSize must be >= 0, got %d", c.MaxBatchSize)
	}
	return nil
}
