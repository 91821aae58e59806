package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledTracingStillProducesUsableManager(t *testing.T) {
	m, err := New(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotNil(t, m.Tracer())
	assert.NotNil(t, m.Metrics())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestMetricsRecordersAreNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLLMCall(context.Background(), "openai", "gpt-4", time.Millisecond, 10, 20)
		m.RecordConcurrencyWait(context.Background(), "agent", time.Millisecond)
		m.RecordNodeExecution(context.Background(), "agent", time.Millisecond, false)
	})
}
