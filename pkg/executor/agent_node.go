package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/agent"
	"github.com/graphbit-dev/graphbit/pkg/graph"
	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// ToolCallsRequired is the tagged structure an Agent node returns when the
// LLM emits tool calls in the tool-orchestration path; the executor does not
// run the tools itself (§4.5 step 6).
type ToolCallsRequired struct {
	Type                string            `json:"type"`
	Content             string            `json:"content"`
	ToolCalls           []llm.LlmToolCall `json:"tool_calls"`
	OriginalPrompt      string            `json:"original_prompt"`
	InitialTokensUsed   int               `json:"initial_tokens_used"`
	MaxTokensConfigured *int              `json:"max_tokens_configured,omitempty"`
}

// runAgentNode implements §4.5's Agent node steps 1-6.
func (e *Executor) runAgentNode(ctx context.Context, node graph.WorkflowNode, wctx *WorkflowContext) (any, error) {
	spec := node.NodeType.Agent
	a, err := e.agents.Get(spec.AgentId)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "agent lookup failed", err)
	}

	preamble := e.buildImplicitPreamble(node.Id, wctx)
	combined := spec.PromptTemplate
	if preamble != "" {
		combined = preamble + "\n\n" + spec.PromptTemplate
	}
	resolvedPrompt := resolveTemplate(combined, e.templateVars(wctx))

	temperature := a.Temperature
	maxTokens := a.MaxTokens
	if t, ok := node.Config["temperature"].(float64); ok {
		temperature = &t
	}
	if m, ok := node.Config["max_tokens"].(float64); ok {
		mi := int(m)
		maxTokens = &mi
	}

	systemPrompt := a.SystemPrompt
	var messages []llm.LlmMessage
	if systemPrompt != "" {
		messages = append(messages, llm.LlmMessage{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.LlmMessage{Role: llm.RoleUser, Content: resolvedPrompt})

	req := llm.LlmRequest{Messages: messages, Temperature: temperature, MaxTokens: maxTokens}

	if schemas, ok := node.Config["tool_schemas"]; ok {
		return e.runAgentToolOrchestration(ctx, node, a, req, resolvedPrompt, schemas, wctx)
	}
	return e.runAgentPlain(ctx, node, a, req, resolvedPrompt, wctx)
}

func (e *Executor) runAgentPlain(ctx context.Context, node graph.WorkflowNode, a *agent.Agent, req llm.LlmRequest, resolvedPrompt string, wctx *WorkflowContext) (any, error) {
	start := time.Now()
	resp, err := a.LlmProvider().Complete(ctx, req)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "agent llm call failed", err)
	}
	duration := time.Since(start)
	if e.obs.Metrics() != nil {
		e.obs.Metrics().RecordLLMCall(ctx, a.LlmProvider().ProviderName(), a.LlmProvider().ModelName(), duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	snapshot := LlmCallSnapshot{ResolvedPrompt: resolvedPrompt, DurationMs: duration.Milliseconds(), Timestamp: start, Content: resp.Content}
	wctx.SetMetadata(string(node.Id), snapshot)
	wctx.SetMetadata(node.Name, snapshot)

	var asJSON any
	if err := json.Unmarshal([]byte(resp.Content), &asJSON); err == nil {
		return asJSON, nil
	}
	return resp.Content, nil
}

func (e *Executor) runAgentToolOrchestration(ctx context.Context, node graph.WorkflowNode, a *agent.Agent, req llm.LlmRequest, resolvedPrompt string, schemasRaw any, wctx *WorkflowContext) (any, error) {
	tools, err := parseToolSchemas(schemasRaw)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "invalid tool_schemas", err)
	}
	req.Tools = tools

	start := time.Now()
	resp, err := a.LlmProvider().Complete(ctx, req)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "agent llm call failed", err)
	}
	if e.obs.Metrics() != nil {
		e.obs.Metrics().RecordLLMCall(ctx, a.LlmProvider().ProviderName(), a.LlmProvider().ModelName(), time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	if len(resp.ToolCalls) > 0 {
		var maxTokens *int
		if req.MaxTokens != nil {
			maxTokens = req.MaxTokens
		}
		return ToolCallsRequired{
			Type:                "tool_calls_required",
			Content:             resp.Content,
			ToolCalls:           resp.ToolCalls,
			OriginalPrompt:      resolvedPrompt,
			InitialTokensUsed:   resp.Usage.CompletionTokens,
			MaxTokensConfigured: maxTokens,
		}, nil
	}

	var asJSON any
	if err := json.Unmarshal([]byte(resp.Content), &asJSON); err == nil {
		return asJSON, nil
	}
	return resp.Content, nil
}

func parseToolSchemas(raw any) ([]llm.LlmTool, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, ids.NewError(ids.KindWorkflowExecution, "tool_schemas must be an array")
	}
	out := make([]llm.LlmTool, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, ids.NewError(ids.KindWorkflowExecution, "each tool schema must be an object")
		}
		name, _ := m["name"].(string)
		description, _ := m["description"].(string)
		params, _ := m["parameters"].(map[string]any)
		out = append(out, llm.LlmTool{Name: name, Description: description, Parameters: params})
	}
	return out, nil
}

// buildImplicitPreamble concatenates parent outputs with "\n\n", skipping
// parents with no recorded output (§4.5 step 2).
func (e *Executor) buildImplicitPreamble(nodeID ids.NodeId, wctx *WorkflowContext) string {
	depsRaw, _ := wctx.Metadata("node_dependencies")
	deps, _ := depsRaw.(map[string][]string)
	parents := deps[string(nodeID)]

	var parts []string
	for _, parentID := range parents {
		if v, ok := wctx.GetOutput(parentID); ok {
			parts = append(parts, fmt.Sprint(v))
			continue
		}
		nameMapRaw, _ := wctx.Metadata("node_id_to_name")
		nameMap, _ := nameMapRaw.(map[string]string)
		if name, ok := nameMap[parentID]; ok {
			if v, ok := wctx.GetOutput(name); ok {
				parts = append(parts, fmt.Sprint(v))
			}
		}
		// else: silently skip, per §4.5 step 2.
	}
	return strings.Join(parts, "\n\n")
}

// templateVars exposes the context's current outputs and metadata to the
// template resolver (§4.4 step 3: "against the context (existing outputs and
// metadata)"). Metadata keys never shadow an output of the same name.
func (e *Executor) templateVars(wctx *WorkflowContext) map[string]any {
	vars := wctx.Outputs()
	for k, v := range wctx.AllMetadata() {
		if _, exists := vars[k]; !exists {
			vars[k] = v
		}
	}
	return vars
}
