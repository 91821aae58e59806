package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/agent"
	"github.com/graphbit-dev/graphbit/pkg/concurrency"
	"github.com/graphbit-dev/graphbit/pkg/graph"
	"github.com/graphbit-dev/graphbit/pkg/ids"
)

type stubDocumentLoader struct {
	doc LoadedDocument
	err error
}

func (s *stubDocumentLoader) Load(context.Context, string, string) (LoadedDocument, error) {
	return s.doc, s.err
}

func TestExecuteDocumentLoaderNode(t *testing.T) {
	registry := agent.NewRegistry()
	mgr := concurrency.NewManager(concurrency.DefaultConfig())
	loader := &stubDocumentLoader{doc: LoadedDocument{Text: "contents", Metadata: map[string]any{"pages": 1}}}
	exec := New(registry, mgr, WithDocumentLoader(loader))

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.DocumentLoaderNode("text", "/tmp/doc.txt")}))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	out, ok := wctx.GetOutput("n")
	require.True(t, ok)
	doc, ok := out.(LoadedDocument)
	require.True(t, ok)
	assert.Equal(t, "contents", doc.Text)
}

func TestExecuteDocumentLoaderNodeFailsWithoutCollaborator(t *testing.T) {
	registry := agent.NewRegistry()
	mgr := concurrency.NewManager(concurrency.DefaultConfig())
	exec := New(registry, mgr)

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.DocumentLoaderNode("text", "/tmp/doc.txt")}))

	_, err := exec.Execute(context.Background(), g)
	assert.Error(t, err)
}

func TestExecuteHttpRequestNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	registry := agent.NewRegistry()
	mgr := concurrency.NewManager(concurrency.DefaultConfig())
	exec := New(registry, mgr)

	g := graph.New()
	n := ids.NodeId("n")
	require.NoError(t, g.AddNode(graph.WorkflowNode{Id: n, Name: "n", NodeType: graph.HttpRequestNode(http.MethodGet, srv.URL, nil, nil)}))

	wctx, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)

	out, ok := wctx.GetOutput("n")
	require.True(t, ok)
	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200, result["status_code"])
	body, ok := result["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["ok"])
}
