package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

func TestFactRoundTrip(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	m.StoreFact(ctx, "profile", "city", "Berlin")
	v, ok := m.GetFact("profile", "city")
	require.True(t, ok)
	assert.Equal(t, "Berlin", v)

	m.UpdateFact(ctx, "profile", "city", "Munich")
	v, ok = m.GetFact("profile", "city")
	require.True(t, ok)
	assert.Equal(t, "Munich", v)

	m.DeleteFact("profile", "city")
	_, ok = m.GetFact("profile", "city")
	assert.False(t, ok)
}

func TestSessionIsolation(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	s1 := ids.NewSessionId()
	s2 := ids.NewSessionId()
	m.StartSession(s1)
	m.StartSession(s2)

	m.StoreWorking(ctx, s1, "session one scratch")
	m.StoreWorking(ctx, s2, "session two scratch")
	require.Equal(t, 2, m.storage.count(TypeWorking))

	m.EndSession(s1)
	assert.Equal(t, 1, m.storage.count(TypeWorking))

	remaining := m.storage.all(typePtr(TypeWorking))
	require.Len(t, remaining, 1)
	assert.Equal(t, "session two scratch", remaining[0].Content)
}

func TestDecayProtectsRecentAndImportant(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	recent := m.StoreWorking(context.Background(), ids.NewSessionId(), "fresh note")
	_ = recent

	important := m.StoreFact(context.Background(), "", "key", "value")
	important.ImportanceScore = 0.95
	important.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	important.LastAccessed = important.CreatedAt

	stale := m.StoreWorking(context.Background(), ids.NewSessionId(), "old and unimportant")
	stale.ImportanceScore = 0.1
	stale.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	stale.LastAccessed = stale.CreatedAt

	forgotten := m.RunDecay()
	assert.Contains(t, forgotten, stale.Id)
	assert.NotContains(t, forgotten, recent.Id)
	assert.NotContains(t, forgotten, important.Id)
}

func TestDecayIsIdempotent(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	stale := m.StoreWorking(context.Background(), ids.NewSessionId(), "old and unimportant")
	stale.ImportanceScore = 0.1
	stale.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	stale.LastAccessed = stale.CreatedAt

	first := m.RunDecay()
	assert.Len(t, first, 1)

	second := m.RunDecay()
	assert.Empty(t, second)
}

func TestStorageEvictsLowestImportanceOnCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity[TypeFactual] = 2
	m := NewManager(cfg, nil)
	ctx := context.Background()

	low := m.StoreFact(ctx, "", "a", "1")
	low.ImportanceScore = 0.1
	m.StoreFact(ctx, "", "b", "2")
	m.StoreFact(ctx, "", "c", "3")

	assert.Equal(t, 2, m.storage.count(TypeFactual))
	_, stillThere := m.storage.get(low.Id)
	assert.False(t, stillThere)
}

func TestReinforceConceptIncreasesConfidence(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	e := m.StoreConcept(context.Background(), "graphs", "directed acyclic structures", 0.5)

	m.ReinforceConcept(e.Id)
	assert.InDelta(t, 0.55, e.Semantic.Confidence, 1e-9)
	assert.Equal(t, 1, e.Semantic.ReinforcementCount)
}

func TestEpisodeLifecycle(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	id := m.StartEpisode(context.Background(), "deploy", []string{"alice", "bob"})

	require.NoError(t, m.AddToEpisode(id, "alice started the rollout"))
	require.NoError(t, m.AddToEpisode(id, "bob verified health checks"))
	require.NoError(t, m.EndEpisode(id, "success"))

	e, ok := m.storage.get(id)
	require.True(t, ok)
	assert.True(t, e.Episode.Ended)
	assert.Equal(t, "success", e.Episode.Outcome)

	err := m.AddToEpisode(id, "too late")
	assert.Error(t, err)
}
