package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/graphbit-dev/graphbit/internal/httpclient"
	"github.com/graphbit-dev/graphbit/internal/observability"
	"github.com/graphbit-dev/graphbit/pkg/agent"
	"github.com/graphbit-dev/graphbit/pkg/concurrency"
	"github.com/graphbit-dev/graphbit/pkg/graph"
	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/tool"
)

// Executor runs a workflow graph to completion, dispatching each ready node
// by kind behind the concurrency manager (§4.4).
type Executor struct {
	agents         *agent.Registry
	concurrency    *concurrency.Manager
	tools          *tool.Manager
	httpClient     *httpclient.Client
	documentLoader DocumentLoader
	obs            *observability.Manager
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithTools wires a tool manager for future tool-call-orchestration
// consumers; the executor itself never invokes tools (§4.5 step 6).
func WithTools(tools *tool.Manager) Option {
	return func(e *Executor) { e.tools = tools }
}

// WithHTTPClient overrides the default http client used by HTTP request
// nodes.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(e *Executor) { e.httpClient = c }
}

// WithDocumentLoader wires the collaborator Document loader nodes delegate
// to. Document loader nodes fail if none is configured.
func WithDocumentLoader(l DocumentLoader) Option {
	return func(e *Executor) { e.documentLoader = l }
}

// WithObservability wires tracing spans and metrics around LLM calls and
// node execution (§A). Omitting this option leaves both as no-ops.
func WithObservability(obs *observability.Manager) Option {
	return func(e *Executor) { e.obs = obs }
}

// New constructs an Executor bound to agents and a concurrency manager.
func New(agents *agent.Registry, concurrencyMgr *concurrency.Manager, opts ...Option) *Executor {
	e := &Executor{agents: agents, concurrency: concurrencyMgr, httpClient: httpclient.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// nodeResult is one completed (or failed) node's outcome, fed back onto the
// scheduler loop's single goroutine.
type nodeResult struct {
	nodeID ids.NodeId
	name   string
	output any
	err    error
}

// Execute runs every node of workflow to completion, in the order its
// dependencies allow, writing each node's output into the returned
// WorkflowContext (§4.4 steps 1-4). A single node failure aborts the whole
// execution: already-running nodes are given a chance to unwind via ctx
// cancellation, but no partial results beyond what had already completed are
// discarded from the context.
func (e *Executor) Execute(ctx context.Context, wf *graph.Graph) (*WorkflowContext, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	nodes := wf.Nodes()
	nodeByID := make(map[ids.NodeId]graph.WorkflowNode, len(nodes))
	nodeDeps := make(map[string][]string, len(nodes))
	nodeIDToName := make(map[string]string, len(nodes))
	for _, n := range nodes {
		nodeByID[n.Id] = n
		nodeIDToName[string(n.Id)] = n.Name
		var deps []string
		for _, d := range wf.GetDependencies(n.Id) {
			deps = append(deps, string(d))
		}
		nodeDeps[string(n.Id)] = deps
	}

	wctx := NewWorkflowContext(ids.NewWorkflowId(), nodeDeps, nodeIDToName)

	incoming := make(map[ids.NodeId][]graph.WorkflowEdge, len(nodes))
	for _, edge := range wf.Edges() {
		incoming[edge.To] = append(incoming[edge.To], edge)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completed := make(map[ids.NodeId]bool, len(nodes))
	running := make(map[ids.NodeId]bool, len(nodes))
	results := make(chan nodeResult)

	var wg sync.WaitGroup
	inFlight := 0

	for len(completed) < len(nodes) {
		ready := wf.GetNextExecutableNodes(completed, running)
		for _, id := range ready {
			// A node every one of whose incoming edges carries a boolean
			// guard that the producing Condition node's output did not
			// satisfy is skipped rather than executed; the skip (a nil
			// output) then propagates to its own dependents the same way.
			if !guardSatisfied(incoming[id], wctx) {
				completed[id] = true
				wctx.SetOutput(string(id), nodeByID[id].Name, nil)
				continue
			}

			n := nodeByID[id]
			running[id] = true
			inFlight++
			wg.Add(1)
			go func(n graph.WorkflowNode) {
				defer wg.Done()
				out, err := e.runNode(runCtx, n, wctx)
				select {
				case results <- nodeResult{nodeID: n.Id, name: n.Name, output: out, err: err}:
				case <-runCtx.Done():
				}
			}(n)
		}

		if inFlight == 0 {
			if len(ready) > 0 {
				// Every ready node this round was skipped by a guard; more
				// nodes may now be ready with completed updated, so loop.
				continue
			}
			// Nothing ready and nothing running: either done, or the graph
			// has a gap Validate should have already caught.
			break
		}

		var res nodeResult
		select {
		case res = <-results:
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return wctx, ctx.Err()
		}
		inFlight--
		delete(running, res.nodeID)
		if res.err != nil {
			cancel()
			wg.Wait()
			return wctx, res.err
		}
		wctx.SetOutput(string(res.nodeID), res.name, res.output)
		completed[res.nodeID] = true
	}

	wg.Wait()
	return wctx, nil
}

// runNode acquires the node-type's concurrency permit, dispatches by kind
// (§4.4 step 3, §4.3), and wraps the dispatch in a trace span plus the
// node-execution metric (§A).
func (e *Executor) runNode(ctx context.Context, n graph.WorkflowNode, wctx *WorkflowContext) (any, error) {
	nt := concurrencyNodeType(n.NodeType.Kind)

	waitStart := time.Now()
	permit, err := e.concurrency.Acquire(ctx, nt)
	if e.obs.Metrics() != nil {
		e.obs.Metrics().RecordConcurrencyWait(ctx, string(n.NodeType.Kind), time.Since(waitStart))
	}
	if err != nil {
		return nil, ids.WorkflowExecutionError(n.Id, "failed to acquire concurrency permit", err)
	}
	defer permit.Release()

	ctx, span := e.obs.Tracer().Start(ctx, "workflow.node."+string(n.NodeType.Kind))
	defer span.End()

	start := time.Now()
	out, err := e.dispatchNode(ctx, n, wctx)
	if e.obs.Metrics() != nil {
		e.obs.Metrics().RecordNodeExecution(ctx, string(n.NodeType.Kind), time.Since(start), err != nil)
	}
	return out, err
}

func (e *Executor) dispatchNode(ctx context.Context, n graph.WorkflowNode, wctx *WorkflowContext) (any, error) {
	switch n.NodeType.Kind {
	case graph.NodeKindAgent:
		return e.runAgentNode(ctx, n, wctx)
	case graph.NodeKindCondition:
		return e.runConditionNode(n, wctx)
	case graph.NodeKindTransform:
		return e.runTransformNode(n, wctx)
	case graph.NodeKindDelay:
		return e.runDelayNode(ctx, n)
	case graph.NodeKindDocumentLoader:
		return e.runDocumentLoaderNode(ctx, n)
	case graph.NodeKindHttpRequest:
		return e.runHttpRequestNode(ctx, n)
	default:
		return nil, ids.NewErrorf(ids.KindWorkflowExecution, "unknown node kind %q", n.NodeType.Kind)
	}
}

// guardSatisfied reports whether a node should run given its incoming
// edges. An edge with no Condition is always taken. A node with at least
// one unguarded or satisfied incoming edge runs; a node whose incoming
// edges are all guarded and unsatisfied (or whose source was itself
// skipped, leaving a nil output) is skipped.
func guardSatisfied(incoming []graph.WorkflowEdge, wctx *WorkflowContext) bool {
	if len(incoming) == 0 {
		return true
	}
	for _, e := range incoming {
		if e.Condition == nil {
			return true
		}
		out, ok := wctx.GetOutput(string(e.From))
		if !ok {
			continue
		}
		if b, ok := out.(bool); ok && b == *e.Condition {
			return true
		}
	}
	return false
}

func concurrencyNodeType(k graph.NodeKind) concurrency.NodeType {
	switch k {
	case graph.NodeKindAgent:
		return concurrency.NodeTypeAgent
	case graph.NodeKindCondition:
		return concurrency.NodeTypeCondition
	case graph.NodeKindTransform:
		return concurrency.NodeTypeTransform
	case graph.NodeKindDelay:
		return concurrency.NodeTypeDelay
	case graph.NodeKindDocumentLoader:
		return concurrency.NodeTypeDocumentLoader
	case graph.NodeKindHttpRequest:
		return concurrency.NodeTypeHttpRequest
	default:
		return concurrency.NodeTypeGlobal
	}
}

// doHttpRequest performs an HttpRequestNodeSpec through the shared retrying
// client, decoding a JSON response body when the content type allows it.
func (e *Executor) doHttpRequest(ctx context.Context, spec *graph.HttpRequestNodeSpec) (any, error) {
	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     flattenHeader(resp.Header),
	}
	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(respBody)
	}
	return result, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
