package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/llm"
)

func echoMeta() Metadata {
	return Metadata{
		Name:        "echo",
		Description: "echoes its input",
		Parameters:  map[string]any{"type": "object"},
		Function: func(ctx context.Context, params map[string]any) (any, error) {
			return params["text"], nil
		},
	}
}

func TestRegisterToolRejectsEmptyName(t *testing.T) {
	m := NewManager()
	meta := echoMeta()
	meta.Name = ""
	err := m.RegisterTool(meta)
	require.Error(t, err)
}

func TestExecuteToolNotFound(t *testing.T) {
	m := NewManager()
	result := m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "missing"})
	assert.False(t, result.Success)
}

func TestExecuteToolDisabled(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterTool(echoMeta()))
	require.NoError(t, m.SetEnabled("echo", false))

	result := m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "echo", Parameters: map[string]any{"text": "hi"}})
	assert.False(t, result.Success)
}

func TestExecuteToolSuccess(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterTool(echoMeta()))

	result := m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "echo", Parameters: map[string]any{"text": "hi"}})
	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Data)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.SuccessfulCalls)
}

func TestExecuteToolErrorBecomesFailedResult(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterTool(Metadata{
		Name:        "boom",
		Description: "always fails",
		Parameters:  map[string]any{"type": "object"},
		Function: func(ctx context.Context, params map[string]any) (any, error) {
			return nil, errors.New("kaboom")
		},
	}))

	result := m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "boom"})
	assert.False(t, result.Success)
	assert.Equal(t, "kaboom", result.Data)
}

func TestExecuteToolsParallelPreservesOrder(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterTool(echoMeta()))

	calls := []llm.LlmToolCall{
		{Name: "echo", Parameters: map[string]any{"text": "a"}},
		{Name: "echo", Parameters: map[string]any{"text": "b"}},
		{Name: "echo", Parameters: map[string]any{"text": "c"}},
	}
	results := m.ExecuteToolsParallel(context.Background(), calls)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Data)
	assert.Equal(t, "b", results[1].Data)
	assert.Equal(t, "c", results[2].Data)
}

func TestBridgedToolSynchronousResult(t *testing.T) {
	m := NewManager()
	err := m.RegisterBridgedTool(Metadata{
		Name:        "bridged",
		Description: "synchronous bridge call",
		Parameters:  map[string]any{"type": "object"},
	}, func(payload map[string]any) (any, error) {
		return "sync-result", nil
	})
	require.NoError(t, err)

	result := m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "bridged"})
	assert.True(t, result.Success)
	assert.Equal(t, "sync-result", result.Data)
}

func TestBridgedToolAsyncRendezvous(t *testing.T) {
	m := NewManager()
	var capturedID string
	err := m.RegisterBridgedTool(Metadata{
		Name:        "bridged-async",
		Description: "asynchronous bridge call",
		Parameters:  map[string]any{"type": "object"},
	}, func(payload map[string]any) (any, error) {
		capturedID = payload["__pendingId"].(string)
		return map[string]any{"__pending": true}, nil
	})
	require.NoError(t, err)

	done := make(chan ToolResult, 1)
	go func() {
		done <- m.ExecuteTool(context.Background(), llm.LlmToolCall{Name: "bridged-async"})
	}()

	require.Eventually(t, func() bool { return capturedID != "" }, time.Second, time.Millisecond)
	require.NoError(t, m.SetPendingResult(capturedID, "async-done", ""))

	result := <-done
	assert.True(t, result.Success)
	assert.Equal(t, "async-done", result.Data)
}
