// Package tool implements the tool-calling manager (§4.6): registry,
// validation, parallel dispatch, statistics, and the cross-language
// async callback bridge.
package tool

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// Function is the local implementation of a registered tool. Foreign-runtime
// tools are registered through RegisterBridgedTool instead (see bridge.go).
type Function func(ctx context.Context, params map[string]any) (any, error)

// Metadata describes one registered tool (§4.6).
type Metadata struct {
	Name        string
	Description string
	Parameters  map[string]any // a JSON-Schema object
	Enabled     bool
	Category    string
	Version     string
	Function    Function
}

// ToolResult is the outcome of one tool invocation (§4.6).
type ToolResult struct {
	Success         bool          `json:"success"`
	Data            any           `json:"data"`
	ExecutionTimeMs int64         `json:"execution_time_ms"`
	ToolName        string        `json:"tool_name"`
}

// Stats aggregates call counts and timing across every registered tool.
type Stats struct {
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	TotalTimeMs     int64
	PerToolCalls    map[string]int64
}

// Manager is a registry of tools plus their execution statistics. The zero
// value is not usable; construct with NewManager. A process-wide default
// instance is offered as a convenience (§9 "Global state").
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Metadata

	statsMu      sync.Mutex
	totalCalls   int64
	successCalls int64
	failedCalls  int64
	totalTimeMs  int64
	perToolCalls map[string]int64

	bridge *bridgeRendezvous
}

// NewManager returns an empty tool manager.
func NewManager() *Manager {
	return &Manager{
		tools:        make(map[string]Metadata),
		perToolCalls: make(map[string]int64),
		bridge:       newBridgeRendezvous(),
	}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the lazily-initialized, never-torn-down process-wide
// registry (§9). Prefer an explicit *Manager where possible to avoid the
// hidden coupling the design notes warn about.
func Default() *Manager {
	defaultManagerOnce.Do(func() { defaultManager = NewManager() })
	return defaultManager
}

// RegisterTool validates metadata and registers it, replacing any prior
// entry under the same name with a warning (§4.6).
func (m *Manager) RegisterTool(meta Metadata) error {
	if meta.Name == "" {
		return ids.ValidationError("name", "tool name must not be empty")
	}
	if meta.Description == "" {
		return ids.ValidationError("description", "tool description must not be empty")
	}
	if meta.Parameters == nil {
		return ids.ValidationError("parameters", "tool parameters must be a JSON-Schema object")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools[meta.Name]; exists {
		logToolReregistered(meta.Name)
	}
	if meta.Category == "" {
		meta.Category = "general"
	}
	meta.Enabled = true
	m.tools[meta.Name] = meta
	return nil
}

// UnregisterTool removes a tool by name. Unregistering a name that was never
// registered is a no-op.
func (m *Manager) UnregisterTool(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tools, name)
}

// SetEnabled toggles a registered tool without removing it.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tools[name]
	if !ok {
		return ids.NewErrorf(ids.KindValidation, "tool %q is not registered", name)
	}
	t.Enabled = enabled
	m.tools[name] = t
	return nil
}

// GetToolDefinitions returns the LlmTool list for every enabled tool, for
// attaching to an LlmRequest (§4.5/§4.6).
func (m *Manager) GetToolDefinitions() []llm.LlmTool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.LlmTool, 0, len(m.tools))
	for _, t := range m.tools {
		if !t.Enabled {
			continue
		}
		out = append(out, llm.LlmTool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

// ExecuteTool looks up the tool named by call.Name, short-circuiting
// disabled or not-found with a recorded failure, and returns its result.
// Errors from the function convert to success=false with the error message
// in Data, never propagated as a Go error (§4.6).
func (m *Manager) ExecuteTool(ctx context.Context, call llm.LlmToolCall) ToolResult {
	m.mu.RLock()
	t, ok := m.tools[call.Name]
	m.mu.RUnlock()

	start := time.Now()
	if !ok {
		m.recordCall(call.Name, false, time.Since(start))
		return ToolResult{Success: false, Data: "tool not found: " + call.Name, ToolName: call.Name}
	}
	if !t.Enabled {
		m.recordCall(call.Name, false, time.Since(start))
		return ToolResult{Success: false, Data: "tool is disabled: " + call.Name, ToolName: call.Name}
	}

	data, err := t.Function(ctx, call.Parameters)
	elapsed := time.Since(start)
	m.recordCall(call.Name, err == nil, elapsed)

	if err != nil {
		return ToolResult{Success: false, Data: err.Error(), ExecutionTimeMs: elapsed.Milliseconds(), ToolName: call.Name}
	}
	return ToolResult{Success: true, Data: data, ExecutionTimeMs: elapsed.Milliseconds(), ToolName: call.Name}
}

// ExecuteToolsParallel spawns one task per call and preserves input order
// in the output slice (§4.6).
func (m *Manager) ExecuteToolsParallel(ctx context.Context, calls []llm.LlmToolCall) []ToolResult {
	out := make([]ToolResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			out[i] = m.ExecuteTool(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (m *Manager) recordCall(name string, success bool, elapsed time.Duration) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.totalCalls++
	if success {
		m.successCalls++
	} else {
		m.failedCalls++
	}
	m.totalTimeMs += elapsed.Milliseconds()
	m.perToolCalls[name]++
}

// GetStats returns a snapshot of aggregate and per-tool call statistics.
func (m *Manager) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	perTool := make(map[string]int64, len(m.perToolCalls))
	for k, v := range m.perToolCalls {
		perTool[k] = v
	}
	return Stats{
		TotalCalls:      m.totalCalls,
		SuccessfulCalls: m.successCalls,
		FailedCalls:     m.failedCalls,
		TotalTimeMs:     m.totalTimeMs,
		PerToolCalls:    perTool,
	}
}

// ResetStats zeroes every counter without touching the registry.
func (m *Manager) ResetStats() {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.totalCalls, m.successCalls, m.failedCalls, m.totalTimeMs = 0, 0, 0, 0
	m.perToolCalls = make(map[string]int64)
}

// marshalParams is used by RegisterTyped (schema.go) to confirm a Go
// struct's derived schema round-trips through JSON cleanly before it's
// accepted as a tool's parameter schema.
func marshalParams(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
