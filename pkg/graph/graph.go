package graph

import (
	"encoding/json"
	"sync"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// Graph holds the nodes, edges, and metadata of one workflow DAG plus four
// derived caches (dependencies, dependents, roots, leaves), all invalidated
// on any structural mutation (§3/§4.2).
type Graph struct {
	mu       sync.RWMutex
	nodes    map[ids.NodeId]WorkflowNode
	edges    []WorkflowEdge
	metadata map[string]any

	// derived caches, nil when invalidated
	depsCache       map[ids.NodeId][]ids.NodeId
	dependentsCache map[ids.NodeId][]ids.NodeId
	rootsCache      []ids.NodeId
	leavesCache     []ids.NodeId
	cachesValid     bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[ids.NodeId]WorkflowNode),
		metadata: make(map[string]any),
	}
}

func (g *Graph) invalidateCaches() {
	g.cachesValid = false
	g.depsCache = nil
	g.dependentsCache = nil
	g.rootsCache = nil
	g.leavesCache = nil
}

// AddNode inserts a node, rejecting a duplicate NodeId with a diagnostic
// naming both the existing and incoming node (§4.2).
func (g *Graph) AddNode(n WorkflowNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.nodes[n.Id]; ok {
		return ids.NewErrorf(ids.KindGraph,
			"duplicate node id %s: existing node %q conflicts with incoming node %q", n.Id, existing.Name, n.Name)
	}
	g.nodes[n.Id] = n.Clone()
	g.invalidateCaches()
	return nil
}

// AddEdge appends an edge, rejecting unknown endpoints (§4.2).
func (g *Graph) AddEdge(e WorkflowEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.From]; !ok {
		return ids.NewErrorf(ids.KindGraph, "edge references unknown from-node %s", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ids.NewErrorf(ids.KindGraph, "edge references unknown to-node %s", e.To)
	}
	g.edges = append(g.edges, e)
	g.invalidateCaches()
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id ids.NodeId) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return ids.NewErrorf(ids.KindGraph, "node %s does not exist", id)
	}
	delete(g.nodes, id)

	kept := g.edges[:0:0]
	for _, e := range g.edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.invalidateCaches()
	return nil
}

// GetNode returns a copy of the node, if present.
func (g *Graph) GetNode(id ids.NodeId) (WorkflowNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns a copy of every node in the graph; iteration order is not
// guaranteed (§4.2).
func (g *Graph) Nodes() []WorkflowNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]WorkflowNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []WorkflowEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]WorkflowEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Metadata returns a shallow copy of the free-form metadata map; changes to
// the copy do not reach the graph, so callers mutate it through SetMetadata.
func (g *Graph) Metadata() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]any, len(g.metadata))
	for k, v := range g.metadata {
		out[k] = v
	}
	return out
}

// SetMetadata sets one metadata key.
func (g *Graph) SetMetadata(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metadata[key] = value
}

func (g *Graph) ensureCachesLocked() {
	if g.cachesValid {
		return
	}
	deps := make(map[ids.NodeId][]ids.NodeId, len(g.nodes))
	dependents := make(map[ids.NodeId][]ids.NodeId, len(g.nodes))
	for id := range g.nodes {
		deps[id] = nil
		dependents[id] = nil
	}
	for _, e := range g.edges {
		deps[e.To] = append(deps[e.To], e.From)
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var roots, leaves []ids.NodeId
	for id := range g.nodes {
		if len(deps[id]) == 0 {
			roots = append(roots, id)
		}
		if len(dependents[id]) == 0 {
			leaves = append(leaves, id)
		}
	}

	g.depsCache = deps
	g.dependentsCache = dependents
	g.rootsCache = roots
	g.leavesCache = leaves
	g.cachesValid = true
}

// GetDependencies returns the direct parent node ids of id.
func (g *Graph) GetDependencies(id ids.NodeId) []ids.NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCachesLocked()
	return append([]ids.NodeId(nil), g.depsCache[id]...)
}

// GetDependents returns the direct child node ids of id.
func (g *Graph) GetDependents(id ids.NodeId) []ids.NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCachesLocked()
	return append([]ids.NodeId(nil), g.dependentsCache[id]...)
}

// GetRootNodes returns every node with no dependencies.
func (g *Graph) GetRootNodes() []ids.NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCachesLocked()
	return append([]ids.NodeId(nil), g.rootsCache...)
}

// GetLeafNodes returns every node with no dependents.
func (g *Graph) GetLeafNodes() []ids.NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCachesLocked()
	return append([]ids.NodeId(nil), g.leavesCache...)
}

// IsNodeReady reports whether every dependency of id is in completed.
func (g *Graph) IsNodeReady(id ids.NodeId, completed map[ids.NodeId]bool) bool {
	for _, dep := range g.GetDependencies(id) {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// GetNextExecutableNodes returns every node whose full dependency set is
// inside completed and which is not itself in completed or running.
// Iteration order is not guaranteed (§4.2).
func (g *Graph) GetNextExecutableNodes(completed, running map[ids.NodeId]bool) []ids.NodeId {
	g.mu.RLock()
	ids_ := make([]ids.NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		ids_ = append(ids_, id)
	}
	g.mu.RUnlock()

	var out []ids.NodeId
	for _, id := range ids_ {
		if completed[id] || running[id] {
			continue
		}
		if g.IsNodeReady(id, completed) {
			out = append(out, id)
		}
	}
	return out
}

// HasCycles reports whether the graph contains a cycle, via a DFS
// white/gray/black coloring.
func (g *Graph) HasCycles() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCachesLocked()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[ids.NodeId]int, len(g.nodes))
	var visit func(ids.NodeId) bool
	visit = func(id ids.NodeId) bool {
		color[id] = gray
		for _, next := range g.dependentsCache[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range g.nodes {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalSort returns a permutation of every node id respecting edge
// direction, via Kahn's algorithm. Returns a Graph error if a cycle exists.
func (g *Graph) TopologicalSort() ([]ids.NodeId, error) {
	g.mu.Lock()
	g.ensureCachesLocked()

	inDegree := make(map[ids.NodeId]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.depsCache[id])
	}
	dependents := make(map[ids.NodeId][]ids.NodeId, len(g.dependentsCache))
	for id, ds := range g.dependentsCache {
		dependents[id] = append([]ids.NodeId(nil), ds...)
	}
	allIDs := make([]ids.NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		allIDs = append(allIDs, id)
	}
	g.mu.Unlock()

	var queue []ids.NodeId
	for _, id := range allIDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	out := make([]ids.NodeId, 0, len(allIDs))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(out) != len(allIDs) {
		return nil, ids.NewError(ids.KindGraph, "graph contains a cycle")
	}
	return out, nil
}

// Validate enforces acyclicity, endpoint existence, agent-id uniqueness, and
// optional name uniqueness (metadata key "enforce_unique_node_names") (§4.2).
func (g *Graph) Validate() error {
	g.mu.RLock()
	nodes := make(map[ids.NodeId]WorkflowNode, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n
	}
	edges := append([]WorkflowEdge(nil), g.edges...)
	enforceUniqueNames, _ := g.metadata["enforce_unique_node_names"].(bool)
	g.mu.RUnlock()

	for _, e := range edges {
		if _, ok := nodes[e.From]; !ok {
			return ids.NewErrorf(ids.KindGraph, "edge references unknown from-node %s", e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return ids.NewErrorf(ids.KindGraph, "edge references unknown to-node %s", e.To)
		}
	}

	if g.HasCycles() {
		return ids.NewError(ids.KindGraph, "graph is not acyclic")
	}

	seenAgents := make(map[ids.AgentId]ids.NodeId)
	seenNames := make(map[string]ids.NodeId)
	for id, n := range nodes {
		if n.NodeType.Kind == NodeKindAgent && n.NodeType.Agent != nil {
			if prior, ok := seenAgents[n.NodeType.Agent.AgentId]; ok {
				return ids.NewErrorf(ids.KindGraph, "agent id %s used by both node %s and node %s",
					n.NodeType.Agent.AgentId, prior, id)
			}
			seenAgents[n.NodeType.Agent.AgentId] = id
		}
		if enforceUniqueNames {
			if prior, ok := seenNames[n.Name]; ok {
				return ids.NewErrorf(ids.KindGraph, "duplicate node name %q used by node %s and node %s", n.Name, prior, id)
			}
			seenNames[n.Name] = id
		}
	}
	return nil
}

// persistedGraph is the on-wire shape: nodes, edges, and metadata only, per
// §3 ("the DAG and caches are rebuilt on load").
type persistedGraph struct {
	Nodes    []WorkflowNode    `json:"nodes"`
	Edges    []WorkflowEdge    `json:"edges"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// MarshalJSON serializes nodes, edges, and metadata only.
func (g *Graph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p := persistedGraph{Edges: append([]WorkflowEdge(nil), g.edges...), Metadata: g.metadata}
	for _, n := range g.nodes {
		p.Nodes = append(p.Nodes, n)
	}
	return json.Marshal(p)
}

// UnmarshalJSON restores nodes, edges, and metadata, then calls
// RebuildGraph to recompute the derived caches (§3/§4.2).
func (g *Graph) UnmarshalJSON(data []byte) error {
	var p persistedGraph
	if err := json.Unmarshal(data, &p); err != nil {
		return ids.Wrap(ids.KindSerde, "decode workflow graph", err)
	}

	g.mu.Lock()
	g.nodes = make(map[ids.NodeId]WorkflowNode, len(p.Nodes))
	for _, n := range p.Nodes {
		g.nodes[n.Id] = n
	}
	g.edges = p.Edges
	g.metadata = p.Metadata
	if g.metadata == nil {
		g.metadata = make(map[string]any)
	}
	g.invalidateCaches()
	g.mu.Unlock()

	return g.RebuildGraph()
}

// RebuildGraph recomputes the four derived caches after deserialization
// (§4.2) and validates structural integrity.
func (g *Graph) RebuildGraph() error {
	g.mu.Lock()
	g.invalidateCaches()
	g.ensureCachesLocked()
	g.mu.Unlock()
	return g.Validate()
}
