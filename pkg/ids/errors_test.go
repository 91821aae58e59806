package ids

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := LlmProviderError("openai", "rate limited")
	assert.Equal(t, "LlmProvider(openai): rate limited", err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindIo, "read failed", cause)
	require.ErrorIs(t, err, cause)
}

func TestIsKind(t *testing.T) {
	err := AgentNotFoundError(AgentId("agent-1"))
	assert.True(t, IsKind(err, KindAgentNotFound))
	assert.False(t, IsKind(err, KindGraph))
	assert.False(t, IsKind(errors.New("plain"), KindGraph))
}

func TestNewIdsAreDistinctAndNonEmpty(t *testing.T) {
	a := NewNodeId()
	b := NewNodeId()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
