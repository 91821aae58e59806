// Package graph implements the workflow DAG: typed nodes, typed edges,
// cache-backed dependency queries, topological ordering, and the structural
// invariants in spec §3/§4.2.
package graph

import (
	"encoding/json"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// NodeKind tags which variant of NodeType a node carries. A closed sum,
// matching the design notes' "tagged variants over dynamic dispatch".
type NodeKind string

const (
	NodeKindAgent          NodeKind = "agent"
	NodeKindCondition      NodeKind = "condition"
	NodeKindTransform      NodeKind = "transform"
	NodeKindDelay          NodeKind = "delay"
	NodeKindHttpRequest    NodeKind = "http_request"
	NodeKindDocumentLoader NodeKind = "document_loader"
)

// AgentNodeSpec is the payload of a NodeKindAgent node.
type AgentNodeSpec struct {
	AgentId       ids.AgentId `json:"agent_id"`
	PromptTemplate string     `json:"prompt_template"`
}

// ConditionNodeSpec is the payload of a NodeKindCondition node. Expression is
// a JSON-predicate mini-language document, per DESIGN.md's Open Question
// resolution (§9).
type ConditionNodeSpec struct {
	Expression json.RawMessage `json:"expression"`
}

// TransformNodeSpec is the payload of a NodeKindTransform node.
type TransformNodeSpec struct {
	Transformation string         `json:"transformation"`
	Params         map[string]any `json:"params,omitempty"`
}

// DelayNodeSpec is the payload of a NodeKindDelay node.
type DelayNodeSpec struct {
	Seconds float64 `json:"seconds"`
}

// HttpRequestNodeSpec is the payload of a NodeKindHttpRequest node.
type HttpRequestNodeSpec struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// DocumentLoaderNodeSpec is the payload of a NodeKindDocumentLoader node.
type DocumentLoaderNodeSpec struct {
	DocumentType string `json:"document_type"`
	SourcePath   string `json:"source_path"`
}

// NodeType is the closed sum of per-kind payloads (§3). Exactly one of the
// pointer fields matching Kind is populated.
type NodeType struct {
	Kind NodeKind `json:"kind"`

	Agent          *AgentNodeSpec          `json:"agent,omitempty"`
	Condition      *ConditionNodeSpec      `json:"condition,omitempty"`
	Transform      *TransformNodeSpec      `json:"transform,omitempty"`
	Delay          *DelayNodeSpec          `json:"delay,omitempty"`
	HttpRequest    *HttpRequestNodeSpec    `json:"http_request,omitempty"`
	DocumentLoader *DocumentLoaderNodeSpec `json:"document_loader,omitempty"`
}

func AgentNode(agentID ids.AgentId, promptTemplate string) NodeType {
	return NodeType{Kind: NodeKindAgent, Agent: &AgentNodeSpec{AgentId: agentID, PromptTemplate: promptTemplate}}
}

func ConditionNode(expression json.RawMessage) NodeType {
	return NodeType{Kind: NodeKindCondition, Condition: &ConditionNodeSpec{Expression: expression}}
}

func TransformNode(transformation string, params map[string]any) NodeType {
	return NodeType{Kind: NodeKindTransform, Transform: &TransformNodeSpec{Transformation: transformation, Params: params}}
}

func DelayNode(seconds float64) NodeType {
	return NodeType{Kind: NodeKindDelay, Delay: &DelayNodeSpec{Seconds: seconds}}
}

func HttpRequestNode(method, url string, headers map[string]string, body json.RawMessage) NodeType {
	return NodeType{Kind: NodeKindHttpRequest, HttpRequest: &HttpRequestNodeSpec{Method: method, URL: url, Headers: headers, Body: body}}
}

func DocumentLoaderNode(documentType, sourcePath string) NodeType {
	return NodeType{Kind: NodeKindDocumentLoader, DocumentLoader: &DocumentLoaderNodeSpec{DocumentType: documentType, SourcePath: sourcePath}}
}

// WorkflowNode is a single, value-typed, cheaply-cloned execution step (§3).
type WorkflowNode struct {
	Id       ids.NodeId     `json:"id"`
	Name     string         `json:"name"`
	NodeType NodeType       `json:"node_type"`
	Config   map[string]any `json:"config,omitempty"`
}

// Clone returns a deep-enough copy safe to mutate independently; Config is
// the only field with reference semantics worth copying explicitly.
func (n WorkflowNode) Clone() WorkflowNode {
	clone := n
	if n.Config != nil {
		clone.Config = make(map[string]any, len(n.Config))
		for k, v := range n.Config {
			clone.Config[k] = v
		}
	}
	return clone
}

// WorkflowEdge carries no identity of its own; it is keyed by (From, To)
// within the graph's edge list (§3).
type WorkflowEdge struct {
	From      ids.NodeId `json:"from"`
	To        ids.NodeId `json:"to"`
	Label     string     `json:"label,omitempty"`
	Condition *bool      `json:"condition,omitempty"`
}
