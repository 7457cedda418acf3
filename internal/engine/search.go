package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/memtier/memtier/internal/session"
	"github.com/memtier/memtier/pkg/types"
)

// SearchOptions configures a context search.
type SearchOptions struct {
	// Query is the lexical search string. Empty matches everything.
	Query string

	// EntityIDs restricts results to memories referencing any of the given
	// entities. Empty means no entity filter.
	EntityIDs []string

	// Limit caps the number of hits (default 20, max 100).
	Limit int
}

// ContextHit is one memory surfaced by a context search.
type ContextHit struct {
	ID             string         `json:"id"`
	Tier           string         `json:"tier"` // "working", "short-term", "long-term"
	Category       types.Category `json:"category,omitempty"`
	Content        string         `json:"content"`
	Strength       float64        `json:"strength"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	MatchSource    string         `json:"match_source"` // "lexical", "entity", "vector", "all"
}

// ContextSnapshot is the read-only aggregation returned by SearchContext,
// consumed by external collaborators for prompt and context assembly.
type ContextSnapshot struct {
	Query       string            `json:"query"`
	GeneratedAt time.Time         `json:"generated_at"`
	Sessions    []session.Summary `json:"sessions,omitempty"`
	Hits        []ContextHit      `json:"hits"`
}

// SearchContext aggregates matching memories across the working, short-term,
// and long-term tiers, ordered by strength descending with ties broken by
// most recent access. When an embedding ranker is attached its similarity
// scores widen the candidate set; ranker failure degrades silently to
// lexical and entity matching.
func (e *Engine) SearchContext(ctx context.Context, opts SearchOptions) (*ContextSnapshot, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	queryLower := strings.ToLower(opts.Query)
	entityFilter := make(map[string]struct{}, len(opts.EntityIDs))
	for _, id := range opts.EntityIDs {
		if id != "" {
			entityFilter[id] = struct{}{}
		}
	}

	var vectorScores map[string]float64
	if e.ranker != nil && opts.Query != "" {
		scores, err := e.ranker.SimilarIDs(ctx, opts.Query, opts.Limit)
		if err != nil {
			log.Printf("warning: embedding ranker unavailable, using lexical search: %v", err)
		} else {
			vectorScores = scores
		}
	}

	snapshot := &ContextSnapshot{
		Query:       opts.Query,
		GeneratedAt: now,
	}

	// Session summaries give collaborators the ambient frame.
	for _, s := range e.sessions {
		snapshot.Sessions = append(snapshot.Sessions, s.ContextSummary())
	}
	sort.Slice(snapshot.Sessions, func(i, j int) bool {
		return snapshot.Sessions[i].SessionID < snapshot.Sessions[j].SessionID
	})

	var hits []ContextHit

	// Working tier.
	for _, s := range e.sessions {
		for _, item := range s.WorkingSet() {
			source, ok := matchSource(item.Content, []string{item.RelatedEntityID}, item.ID, queryLower, entityFilter, vectorScores)
			if !ok {
				continue
			}
			hits = append(hits, ContextHit{
				ID:             item.ID,
				Tier:           "working",
				Content:        item.Content,
				Strength:       item.EffectiveImportance() * (1 - item.Decay),
				LastAccessedAt: item.AccessedAt(),
				MatchSource:    source,
			})
		}
	}

	// Short-term tier.
	for _, entry := range e.shortTerm.All(now) {
		source, ok := matchSource(entry.Content, entry.RelatedEntityIDs, entry.ID, queryLower, entityFilter, vectorScores)
		if !ok {
			continue
		}
		hits = append(hits, ContextHit{
			ID:             entry.ID,
			Tier:           "short-term",
			Content:        entry.Content,
			Strength:       entry.CurrentStrength(now),
			LastAccessedAt: entry.AccessedAt(),
			MatchSource:    source,
		})
	}

	// Long-term tier, all four collections.
	for _, ep := range e.longTerm.Episodes() {
		source, ok := matchSource(ep.Summary, ep.InvolvedEntityIDs, ep.ID, queryLower, entityFilter, vectorScores)
		if !ok {
			continue
		}
		hits = append(hits, ContextHit{
			ID:             ep.ID,
			Tier:           "long-term",
			Category:       types.CategoryEpisodic,
			Content:        ep.Summary,
			Strength:       episodeStrength(ep, now),
			LastAccessedAt: ep.AccessedAt(),
			MatchSource:    source,
		})
	}
	for _, c := range e.longTerm.Concepts() {
		source, ok := matchSource(c.Name, []string{c.Name}, c.ID, queryLower, entityFilter, vectorScores)
		if !ok {
			continue
		}
		hits = append(hits, ContextHit{
			ID:             c.ID,
			Tier:           "long-term",
			Category:       types.CategorySemantic,
			Content:        c.Name,
			Strength:       maxFloat(c.Strength, c.StrengthScore),
			LastAccessedAt: c.AccessedAt(),
			MatchSource:    source,
		})
	}
	for _, p := range e.longTerm.Patterns() {
		source, ok := matchSource(p.Name+" "+strings.Join(p.Steps, " "), nil, p.ID, queryLower, entityFilter, vectorScores)
		if !ok {
			continue
		}
		hits = append(hits, ContextHit{
			ID:             p.ID,
			Tier:           "long-term",
			Category:       types.CategoryProcedural,
			Content:        p.Name,
			Strength:       maxFloat(p.Strength, p.StrengthScore),
			LastAccessedAt: p.AccessedAt(),
			MatchSource:    source,
		})
	}
	for _, f := range e.longTerm.Facts() {
		source, ok := matchSource(f.Statement, nil, f.ID, queryLower, entityFilter, vectorScores)
		if !ok {
			continue
		}
		hits = append(hits, ContextHit{
			ID:             f.ID,
			Tier:           "long-term",
			Category:       types.CategoryFact,
			Content:        f.Statement,
			Strength:       f.StrengthScore,
			LastAccessedAt: f.AccessedAt(),
			MatchSource:    source,
		})
	}

	// Order by strength descending; ties break by most recent access, then
	// by ID so results are reproducible.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Strength != hits[j].Strength {
			return hits[i].Strength > hits[j].Strength
		}
		if !hits[i].LastAccessedAt.Equal(hits[j].LastAccessedAt) {
			return hits[i].LastAccessedAt.After(hits[j].LastAccessedAt)
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	snapshot.Hits = hits
	return snapshot, nil
}

// matchSource decides whether a memory matches the search and reports which
// signal matched. No query and no entity filter matches everything.
func matchSource(content string, entityIDs []string, id, queryLower string, entityFilter map[string]struct{}, vectorScores map[string]float64) (string, bool) {
	lexical := queryLower == "" || lexicalMatch(content, queryLower)
	entity := len(entityFilter) == 0 || anyEntity(entityIDs, entityFilter)

	if _, ok := vectorScores[id]; ok && entity {
		return "vector", true
	}

	switch {
	case queryLower == "" && len(entityFilter) == 0:
		return "all", true
	case lexical && entity && queryLower != "":
		return "lexical", true
	case lexical && entity:
		return "entity", true
	default:
		return "", false
	}
}

// lexicalMatch reports whether every query word appears in the content, or
// the full phrase does.
func lexicalMatch(content, queryLower string) bool {
	contentLower := strings.ToLower(content)
	if strings.Contains(contentLower, queryLower) {
		return true
	}
	words := strings.Fields(queryLower)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(contentLower, w) {
			return false
		}
	}
	return true
}

func anyEntity(ids []string, filter map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := filter[id]; ok {
			return true
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
