// Package executor runs a workflow graph: it schedules ready nodes behind
// the concurrency manager, dispatches each by node kind, and accumulates
// results into a single guarded WorkflowContext (§4.4).
package executor

import (
	"sync"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// WorkflowContext is the single mutable record a workflow execution writes
// into; every writer acquires its mutex (§4.4/§5).
type WorkflowContext struct {
	mu sync.Mutex

	WorkflowId ids.WorkflowId
	outputs    map[string]any
	metadata   map[string]any
}

// NewWorkflowContext seeds node_dependencies and node_id_to_name in metadata,
// per §4.4 step 2, so the template resolver never re-queries the graph.
func NewWorkflowContext(workflowID ids.WorkflowId, nodeDependencies map[string][]string, nodeIdToName map[string]string) *WorkflowContext {
	return &WorkflowContext{
		WorkflowId: workflowID,
		outputs:    make(map[string]any),
		metadata: map[string]any{
			"node_dependencies": nodeDependencies,
			"node_id_to_name":   nodeIdToName,
		},
	}
}

// SetOutput writes value under both keys, per §4.4 step 3c ("both the
// node-id string and the node name").
func (c *WorkflowContext) SetOutput(nodeID, nodeName string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[nodeID] = value
	if nodeName != "" {
		c.outputs[nodeName] = value
	}
}

// GetOutput looks up an output by node id or name.
func (c *WorkflowContext) GetOutput(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.outputs[key]
	return v, ok
}

// Outputs returns a shallow copy of every recorded output.
func (c *WorkflowContext) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// SetMetadata records a value under key in the shared metadata map, used for
// the per-node LLM-call snapshot (§4.5 step 5: "record ... a snapshot keyed
// both by node-id and node-name").
func (c *WorkflowContext) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata reads a metadata value.
func (c *WorkflowContext) Metadata(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// AllMetadata returns a shallow copy of every recorded metadata entry.
func (c *WorkflowContext) AllMetadata() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// LlmCallSnapshot is recorded into metadata for every Agent node call
// (§4.5 step 5).
type LlmCallSnapshot struct {
	ResolvedPrompt string
	DurationMs     int64
	Timestamp      time.Time
	Content        string
}
