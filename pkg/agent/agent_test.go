package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

func TestRegistryGetMissingAgentReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(ids.NewAgentId())
	require.Error(t, err)
	assert.True(t, ids.IsKind(err, ids.KindAgentNotFound))
}

func TestRegistryGetReturnsRegisteredAgent(t *testing.T) {
	id := ids.NewAgentId()
	a := New(id, "researcher", "looks things up", nil)
	r := NewRegistry(a)

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "researcher", got.Name())
}
