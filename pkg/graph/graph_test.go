package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

func newNode(name string) WorkflowNode {
	return WorkflowNode{Id: ids.NewNodeId(), Name: name, NodeType: DelayNode(0)}
}

func TestAddNodeRejectsDuplicateId(t *testing.T) {
	g := New()
	a := newNode("a")
	require.NoError(t, g.AddNode(a))

	dup := a
	dup.Name = "a-again"
	err := g.AddNode(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestAddEdgeRejectsUnknownEndpoint(t *testing.T) {
	g := New()
	a := newNode("a")
	require.NoError(t, g.AddNode(a))

	err := g.AddEdge(WorkflowEdge{From: a.Id, To: ids.NewNodeId()})
	require.Error(t, err)
}

func TestAcyclicGraphHasNoCyclesAndTopoSorts(t *testing.T) {
	g := New()
	a, b, c := newNode("a"), newNode("b"), newNode("c")
	for _, n := range []WorkflowNode{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: b.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: b.Id, To: c.Id}))

	assert.False(t, g.HasCycles())
	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Len(t, order, 3)

	pos := map[ids.NodeId]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[a.Id], pos[b.Id])
	assert.Less(t, pos[b.Id], pos[c.Id])
}

func TestCycleIsDetected(t *testing.T) {
	g := New()
	a, b := newNode("a"), newNode("b")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: b.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: b.Id, To: a.Id}))

	assert.True(t, g.HasCycles())
	_, err := g.TopologicalSort()
	require.Error(t, err)
	require.Error(t, g.Validate())
}

func TestCacheCoherenceAfterMutation(t *testing.T) {
	g := New()
	a, b, c := newNode("a"), newNode("b"), newNode("c")
	for _, n := range []WorkflowNode{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: b.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: c.Id}))

	assert.ElementsMatch(t, []ids.NodeId{a.Id}, g.GetRootNodes())
	assert.ElementsMatch(t, []ids.NodeId{b.Id, c.Id}, g.GetLeafNodes())
	assert.ElementsMatch(t, []ids.NodeId{a.Id}, g.GetDependencies(b.Id))

	require.NoError(t, g.RemoveNode(c.Id))

	assert.ElementsMatch(t, []ids.NodeId{a.Id}, g.GetRootNodes())
	assert.ElementsMatch(t, []ids.NodeId{b.Id}, g.GetLeafNodes())
	assert.Empty(t, g.GetDependents(b.Id))
}

func TestGetNextExecutableNodes(t *testing.T) {
	g := New()
	a, b, c, d := newNode("a"), newNode("b"), newNode("c"), newNode("d")
	for _, n := range []WorkflowNode{a, b, c, d} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: b.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: a.Id, To: c.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: b.Id, To: d.Id}))
	require.NoError(t, g.AddEdge(WorkflowEdge{From: c.Id, To: d.Id}))

	completed := map[ids.NodeId]bool{}
	running := map[ids.NodeId]bool{}
	assert.ElementsMatch(t, []ids.NodeId{a.Id}, g.GetNextExecutableNodes(completed, running))

	completed[a.Id] = true
	assert.ElementsMatch(t, []ids.NodeId{b.Id, c.Id}, g.GetNextExecutableNodes(completed, running))

	completed[b.Id] = true
	running[c.Id] = true
	assert.Empty(t, g.GetNextExecutableNodes(completed, running))

	completed[c.Id] = true
	delete(running, c.Id)
	assert.ElementsMatch(t, []ids.NodeId{d.Id}, g.GetNextExecutableNodes(completed, running))
}

func TestEnforceUniqueNodeNames(t *testing.T) {
	g := New()
	g.SetMetadata("enforce_unique_node_names", true)
	a := newNode("same")
	b := newNode("same")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node name")
}

func TestDuplicateAgentIdRejected(t *testing.T) {
	g := New()
	agentID := ids.NewAgentId()
	a := WorkflowNode{Id: ids.NewNodeId(), Name: "a", NodeType: AgentNode(agentID, "hi")}
	b := WorkflowNode{Id: ids.NewNodeId(), Name: "b", NodeType: AgentNode(agentID, "hi")}
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "used by both node")
}
