package executor

import (
	"context"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/graph"
	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// DocumentLoader is the collaborator Document loader nodes delegate to
// (§4.5: "a thin collaborator stub").
type DocumentLoader interface {
	Load(ctx context.Context, sourcePath, documentType string) (LoadedDocument, error)
}

// LoadedDocument is the structured result a DocumentLoader returns.
type LoadedDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *Executor) runConditionNode(node graph.WorkflowNode, wctx *WorkflowContext) (any, error) {
	spec := node.NodeType.Condition
	result, err := evaluateCondition(spec.Expression, wctx.Outputs())
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "condition evaluation failed", err)
	}
	return result, nil
}

func (e *Executor) runTransformNode(node graph.WorkflowNode, wctx *WorkflowContext) (any, error) {
	spec := node.NodeType.Transform
	inputs := e.collectParentOutputs(node.Id, wctx)
	result, err := RunTransform(spec.Transformation, inputs, spec.Params)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "transform failed", err)
	}
	return result, nil
}

func (e *Executor) runDelayNode(ctx context.Context, node graph.WorkflowNode) (any, error) {
	spec := node.NodeType.Delay
	d := time.Duration(spec.Seconds * float64(time.Second))
	select {
	case <-time.After(d):
		return "completed", nil
	case <-ctx.Done():
		return nil, ids.WorkflowExecutionError(node.Id, "delay cancelled", ctx.Err())
	}
}

func (e *Executor) runDocumentLoaderNode(ctx context.Context, node graph.WorkflowNode) (any, error) {
	spec := node.NodeType.DocumentLoader
	if e.documentLoader == nil {
		return nil, ids.WorkflowExecutionError(node.Id, "no document loader configured", nil)
	}
	doc, err := e.documentLoader.Load(ctx, spec.SourcePath, spec.DocumentType)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "document load failed", err)
	}
	return doc, nil
}

func (e *Executor) runHttpRequestNode(ctx context.Context, node graph.WorkflowNode) (any, error) {
	spec := node.NodeType.HttpRequest
	result, err := e.doHttpRequest(ctx, spec)
	if err != nil {
		return nil, ids.WorkflowExecutionError(node.Id, "http request failed", err)
	}
	return result, nil
}

// collectParentOutputs resolves a node's parent outputs in dependency order,
// skipping parents with no recorded output (§4.5's Transform node input
// sourcing, mirroring the Agent node's preamble lookup).
func (e *Executor) collectParentOutputs(nodeID ids.NodeId, wctx *WorkflowContext) []any {
	depsRaw, _ := wctx.Metadata("node_dependencies")
	deps, _ := depsRaw.(map[string][]string)

	var out []any
	for _, parentID := range deps[string(nodeID)] {
		if v, ok := wctx.GetOutput(parentID); ok {
			out = append(out, v)
		}
	}
	return out
}
