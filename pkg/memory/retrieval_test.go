package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

func TestRetrieveFiltersByTokenOverlapAndTouches(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	m.StoreFact(ctx, "", "language", "Go is a compiled language")
	m.StoreFact(ctx, "", "weather", "it is raining in Berlin")

	results := m.Retrieve(ctx, Query{Text: "compiled language", MinSimilarity: 0.1})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "compiled")
	assert.Equal(t, 1, results[0].AccessCount)
}

func TestRetrieveEmptyQueryMatchesEverythingPassingFilters(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	m.StoreFact(ctx, "", "a", "1")
	m.StoreFact(ctx, "", "b", "2")

	results := m.Retrieve(ctx, Query{})
	assert.Len(t, results, 2)
}

func TestRetrieveRespectsLimit(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.StoreFact(ctx, "", "k", "v")
	}

	results := m.Retrieve(ctx, Query{Limit: 2})
	assert.Len(t, results, 2)
}

func TestRetrieveSessionFilter(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	session := ids.NewSessionId()
	m.StoreWorking(ctx, session, "scoped note")
	m.StoreFact(ctx, "", "unrelated", "fact")

	results := m.Retrieve(ctx, Query{SessionId: &session})
	require.Len(t, results, 1)
	assert.Equal(t, "scoped note", results[0].Content)
}
