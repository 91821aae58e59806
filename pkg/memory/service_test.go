package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/embedding"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// scriptedProvider returns one scripted Content string per Complete call, in
// order, so tests can drive the extraction/decision prompts deterministically
// without a real LLM.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, req llm.LlmRequest) (*llm.LlmResponse, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("scriptedProvider: no response queued for call %d", p.calls)
	}
	resp := &llm.LlmResponse{Content: p.responses[p.calls]}
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.LlmRequest) (<-chan llm.StreamChunk, error) {
	return nil, fmt.Errorf("scriptedProvider does not support streaming")
}

func (p *scriptedProvider) ProviderName() string           { return "scripted" }
func (p *scriptedProvider) ModelName() string               { return "scripted-1" }
func (p *scriptedProvider) SupportsFunctionCalling() bool    { return false }
func (p *scriptedProvider) SupportsStreaming() bool          { return false }
func (p *scriptedProvider) MaxContextLength() int            { return 8192 }
func (p *scriptedProvider) CostPerToken() (float64, float64) { return 0, 0 }

// hashEmbedder produces a deterministic, content-derived vector so
// CosineSimilarity-based search behaves consistently in tests without a real
// embedding backend.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, 1}, nil
}

func newTestService(t *testing.T, provider llm.Provider) *Service {
	t.Helper()
	store, err := OpenMetadataStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var embedder embedding.Embedder = hashEmbedder{}
	index, err := NewVectorIndex(embedder)
	require.NoError(t, err)

	processor := NewProcessor(provider)
	return NewService(DefaultServiceConfig(), store, index, processor, embedder)
}

func TestServiceAddExtractsAndInserts(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`["User lives in Berlin"]`,
		`{"action": "add", "target_id": ""}`,
	}}
	svc := newTestService(t, provider)
	scope := Scope{UserId: strPtr("u1")}

	result, err := svc.Add(context.Background(), []llm.LlmMessage{
		{Role: llm.RoleUser, Content: "I live in Berlin"},
	}, scope)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	require.Equal(t, ActionKindAdd, result.Decisions[0].Kind)

	existing, err := svc.store.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	require.Equal(t, "User lives in Berlin", existing[0].Content)

	history, err := svc.History(context.Background(), existing[0].Id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ActionAdd, history[0].Action)
}

// TestServiceDedupUpdatesExistingMemory mirrors the Berlin -> Munich scenario:
// a second Add recognizes the new fact supersedes the existing one and
// updates it instead of inserting a duplicate, leaving an ADD then UPDATE
// history trail.
func TestServiceDedupUpdatesExistingMemory(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`["User lives in Berlin"]`,
		`{"action": "add", "target_id": ""}`,
	}}
	svc := newTestService(t, provider)
	scope := Scope{UserId: strPtr("u1")}

	_, err := svc.Add(context.Background(), []llm.LlmMessage{
		{Role: llm.RoleUser, Content: "I live in Berlin"},
	}, scope)
	require.NoError(t, err)

	existing, err := svc.store.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	originalId := existing[0].Id

	provider.responses = append(provider.responses,
		`["User lives in Munich"]`,
		fmt.Sprintf(`{"action": "update", "target_id": %q}`, originalId),
	)

	result, err := svc.Add(context.Background(), []llm.LlmMessage{
		{Role: llm.RoleUser, Content: "Actually I moved to Munich"},
	}, scope)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	require.Equal(t, ActionKindUpdate, result.Decisions[0].Kind)

	after, err := svc.store.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, after, 1) // updated in place, not duplicated
	require.Equal(t, "User lives in Munich", after[0].Content)

	history, err := svc.History(context.Background(), originalId)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ActionAdd, history[0].Action)
	require.Equal(t, ActionUpdate, history[1].Action)
	require.Equal(t, "User lives in Berlin", history[1].OldContent)
	require.Equal(t, "User lives in Munich", history[1].NewContent)
}

func TestServiceMalformedDecisionFallsBackToAdd(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`["some fact"]`,
		`not json at all`,
	}}
	svc := newTestService(t, provider)
	scope := Scope{UserId: strPtr("u2")}

	result, err := svc.Add(context.Background(), []llm.LlmMessage{
		{Role: llm.RoleUser, Content: "doesn't matter"},
	}, scope)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	require.Equal(t, ActionKindAdd, result.Decisions[0].Kind)
}

func strPtr(s string) *string { return &s }
