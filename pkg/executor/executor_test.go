package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/agent"
	"github.com/graphbit-dev/graphbit/pkg/concurrency"
	"github.com/graphbit-dev/graphbit/pkg/graph"
	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// scriptedProvider answers Complete with scripted responses in order, per
// the memory package's test double convention.
type scriptedProvider struct {
	responses []llm.LlmResponse
	i         int
	calls     []llm.LlmRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.LlmRequest) (*llm.LlmResponse, error) {
	p.calls = append(p.calls, req)
	if p.i >= len(p.responses) {
		return nil, ids.NewError(ids.KindWorkflowExecution, "scriptedProvider exhausted")
	}
	resp := p.responses[p.i]
	p.i++
	return &resp, nil
}

func (p *scriptedProvider) Stream(context.Context, llm.LlmRequest) (<-chan llm.StreamChunk, error) {
	return nil, ids.NewError(ids.KindWorkflowExecution, "streaming not supported")
}
func (p *scriptedProvider) ProviderName() string            { return "scripted" }
func (p *scriptedProvider) ModelName() string                { return "scripted-model" }
func (p *scriptedProvider) SupportsFunctionCalling() bool     { return true }
func (p *scriptedProvider) SupportsStreaming() bool           { return false }
func (p *scriptedProvider) MaxContextLength() int             { return 8192 }
func (p *scriptedProvider) CostPerToken() (float64, float64) { return 0, 0 }

func newTestExecutor(t *testing.T, provider llm.Provider) (*Executor, ids.AgentId) {
	t.Helper()
	agentID := ids.NewAgentId()
	registry := agent.NewRegistry(agent.New(agentID, "responder", "test agent", provider))
	mgr := concurrency.NewManager(concurrency.DefaultConfig())
	return New(registry, mgr), agentID
}

func TestExecuteDiamondGraph(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LlmResponse{{Content: "hello"}}}
	exec, agentID := newTestExecutor(t, provider)

	g := graph.New()
	start := ids.NewNodeId()
	left := ids.NodeId("left")
	right := ids.NodeId("right")
	end := ids.NodeId("end")

	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: start, Name: "start", NodeType: graph.AgentNode(agentID, "go")}))
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: left, Name: "left", NodeType: graph.TransformNode("uppercase", nil)}))
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: right, Name: "right", NodeType: graph.TransformNode("lowercase", nil)}))
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: end, Name: "end", NodeType: graph.TransformNode("concat", map[string]any{"separator": "|"})}))
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: start, To: left}))
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: start, To: right}))
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: left, To: end}))
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: right, To: end}))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	endOut, ok := wctx.GetOutput("end")
	require.True(t, ok)
	assert.Equal(t, "HELLO|hello", endOut)
}

func TestExecuteAgentNodePlainPath(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LlmResponse{{Content: "plain text answer"}}}
	exec, agentID := newTestExecutor(t, provider)

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.AgentNode(agentID, "say hi")}))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	out, ok := wctx.GetOutput("n")
	require.True(t, ok)
	assert.Equal(t, "plain text answer", out)
}

func TestExecuteAgentNodeToolOrchestrationPath(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LlmResponse{
		{
			Content:   "",
			ToolCalls: []llm.LlmToolCall{{Id: "call-1", Name: "lookup", Parameters: map[string]any{"q": "weather"}}},
			Usage:     llm.Usage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42},
		},
	}}
	exec, agentID := newTestExecutor(t, provider)

	g := graph.New()
	n := ids.NodeId("n")
	node := graph.WorkflowNode{
		Id:       n,
		Name:     "n",
		NodeType: graph.AgentNode(agentID, "look it up"),
		Config: map[string]any{
			"tool_schemas": []any{
				map[string]any{"name": "lookup", "description": "looks something up", "parameters": map[string]any{}},
			},
		},
	}
	require.NoError(t, g.AddNode(node))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	out, ok := wctx.GetOutput("n")
	require.True(t, ok)
	tcr, ok := out.(ToolCallsRequired)
	require.True(t, ok)
	assert.Equal(t, "tool_calls_required", tcr.Type)
	assert.Equal(t, "look it up", tcr.OriginalPrompt)
	assert.Len(t, tcr.ToolCalls, 1)
	assert.Equal(t, "lookup", tcr.ToolCalls[0].Name)
	assert.Equal(t, 12, tcr.InitialTokensUsed)
}

func TestExecuteConditionGuardSkipsUnmatchedBranch(t *testing.T) {
	exec, _ := newTestExecutor(t, &scriptedProvider{})

	g := graph.New()
	cond := ids.NodeId("cond")
	whenTrue := ids.NodeId("when-true")
	whenFalse := ids.NodeId("when-false")

	expr, err := json.Marshal(map[string]any{"eq": []any{1, 1}})
	require.NoError(t, err)

	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: cond, Name: "cond", NodeType: graph.ConditionNode(expr)}))
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: whenTrue, Name: "when-true", NodeType: graph.TransformNode("uppercase", nil)}))
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: whenFalse, Name: "when-false", NodeType: graph.TransformNode("lowercase", nil)}))

	trueVal, falseVal := true, false
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: cond, To: whenTrue, Condition: &trueVal}))
	require.NoError(t, g.AddEdge(graph.WorkflowEdge{From: cond, To: whenFalse, Condition: &falseVal}))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	condOut, ok := wctx.GetOutput("cond")
	require.True(t, ok)
	assert.Equal(t, true, condOut)

	_, ranTrue := wctx.GetOutput("when-true")
	assert.True(t, ranTrue)

	falseOut, ranFalse := wctx.GetOutput("when-false")
	require.True(t, ranFalse)
	assert.Nil(t, falseOut)
}

func TestExecuteDelayNodeRespectsCancellation(t *testing.T) {
	exec, _ := newTestExecutor(t, &scriptedProvider{})

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.DelayNode(10)}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, g)
	require.Error(t, err)
}

func TestExecuteFailingNodeAbortsWorkflow(t *testing.T) {
	exec, agentID := newTestExecutor(t, &scriptedProvider{}) // no responses: every call errors

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.AgentNode(agentID, "boom")}))

	_, err := exec.Execute(context.Background(), g)
	require.Error(t, err)
	gbErr, ok := err.(*ids.Error)
	require.True(t, ok)
	assert.Equal(t, ids.KindWorkflowExecution, gbErr.Kind)
}

func TestExecuteUnknownAgentFailsLookup(t *testing.T) {
	exec, _ := newTestExecutor(t, &scriptedProvider{})

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.AgentNode(ids.NewAgentId(), "go")}))

	_, err := exec.Execute(context.Background(), g)
	require.Error(t, err)
}
