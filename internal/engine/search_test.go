package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtier/memtier/internal/engine"
	"github.com/memtier/memtier/internal/session"
	"github.com/memtier/memtier/pkg/types"
)

type stubRanker struct {
	scores map[string]float64
	err    error
}

func (r *stubRanker) SimilarIDs(ctx context.Context, query string, limit int) (map[string]float64, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.scores, nil
}

func TestSearchContextAggregatesAllTiers(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	sess := session.New("errand run", "Downtown", session.DefaultConfig(), now)
	sess.AddToWorkingSet(&types.WorkingItem{
		MemoryRecord: types.MemoryRecord{
			ID:         "wi-1",
			CreatedAt:  now,
			Importance: 0.6,
		},
		Content:         "dry cleaning ticket",
		Kind:            types.KindEntityReference,
		Priority:        types.PriorityHigh,
		RelatedEntityID: "cleaner",
	})
	eng.AttachSession(sess)

	_, err := eng.Ingest(engine.IngestRequest{
		Content:            "dropped off dry cleaning",
		MemoryType:         types.MemoryEpisodic,
		Importance:         0.5,
		RelatedEntityIDs:   []string{"cleaner"},
		ConsolidationScore: 0.1, // below the promotion gate, stays short-term
	})
	require.NoError(t, err)

	eng.LongTerm().UpsertEpisode(newEpisode("ep-clean", now.Add(-48*time.Hour), "Downtown", "cleaner"))

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{Query: "dry cleaning"})
	require.NoError(t, err)

	tiers := make(map[string]bool)
	for _, hit := range snap.Hits {
		tiers[hit.Tier] = true
	}
	assert.True(t, tiers["working"], "expected a working-tier hit")
	assert.True(t, tiers["short-term"], "expected a short-term hit")

	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, sess.ID, snap.Sessions[0].SessionID)
	assert.Equal(t, "dry cleaning", snap.Query)
}

func TestSearchContextEntityFilter(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	eng.LongTerm().UpsertEpisode(newEpisode("ep-a", now, "Office", "alice"))
	eng.LongTerm().UpsertEpisode(newEpisode("ep-b", now.Add(48*time.Hour), "Office", "bob"))

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{EntityIDs: []string{"alice"}})
	require.NoError(t, err)

	require.Len(t, snap.Hits, 1)
	assert.Equal(t, "ep-a", snap.Hits[0].ID)
	assert.Equal(t, "entity", snap.Hits[0].MatchSource)
}

func TestSearchContextOrdersByStrength(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	strong := newEpisode("ep-strong", now.Add(-time.Hour), "", "alice")
	strong.Importance = 0.9
	strong.StrengthScore = 0.9
	weak := newEpisode("ep-weak", now.Add(-72*time.Hour), "", "bob")
	weak.Importance = 0.2
	eng.LongTerm().UpsertEpisode(strong)
	eng.LongTerm().UpsertEpisode(weak)

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{})
	require.NoError(t, err)

	require.Len(t, snap.Hits, 2)
	assert.Equal(t, "ep-strong", snap.Hits[0].ID)
	assert.Greater(t, snap.Hits[0].Strength, snap.Hits[1].Strength)
}

func TestSearchContextLimit(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	// Disjoint entities and spread occurrences: nothing merges.
	for i, id := range []string{"ep-1", "ep-2", "ep-3", "ep-4"} {
		eng.LongTerm().UpsertEpisode(newEpisode(id, now.Add(time.Duration(i*48)*time.Hour), "", id+"-entity"))
	}

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, snap.Hits, 2)
}

func TestSearchContextVectorRanking(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	// The episode's text shares no words with the query; only the ranker
	// can surface it.
	eng.LongTerm().UpsertEpisode(newEpisode("ep-vec", now, "", "alice"))
	eng.AttachRanker(&stubRanker{scores: map[string]float64{"ep-vec": 0.92}})

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{Query: "unrelated wording"})
	require.NoError(t, err)

	require.Len(t, snap.Hits, 1)
	assert.Equal(t, "ep-vec", snap.Hits[0].ID)
	assert.Equal(t, "vector", snap.Hits[0].MatchSource)
}

func TestSearchContextDegradesWhenRankerFails(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, engine.DefaultConfig(), now)

	ep := newEpisode("ep-lex", now, "", "alice")
	ep.Summary = "lunch at the taqueria"
	eng.LongTerm().UpsertEpisode(ep)
	eng.AttachRanker(&stubRanker{err: errors.New("embedding service down")})

	snap, err := eng.SearchContext(context.Background(), engine.SearchOptions{Query: "taqueria"})
	require.NoError(t, err, "ranker failure must not fail the search")

	require.Len(t, snap.Hits, 1)
	assert.Equal(t, "lexical", snap.Hits[0].MatchSource)
}
