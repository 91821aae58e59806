package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/embedding"
	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// ServiceConfig tunes the persistent tier.
type ServiceConfig struct {
	SimilarityThreshold float64
}

// DefaultServiceConfig matches a middle-of-the-road similarity cutoff.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{SimilarityThreshold: 0.75}
}

// Service is the persistent, deduplicating memory façade (§4.7's "long-lived
// tier"): a SQLite metadata store, an in-process vector index, and an
// LLM-driven Processor that decides Add/Update/Delete/Noop per extracted
// candidate fact.
type Service struct {
	cfg       ServiceConfig
	store     *MetadataStore
	index     *VectorIndex
	processor *Processor
	embedder  embedding.Embedder
}

// NewService wires the three collaborators into one façade.
func NewService(cfg ServiceConfig, store *MetadataStore, index *VectorIndex, processor *Processor, embedder embedding.Embedder) *Service {
	return &Service{cfg: cfg, store: store, index: index, processor: processor, embedder: embedder}
}

// AddResult reports what Add actually did, for tests and callers that want
// to observe the dedup decision (§8 scenario 6).
type AddResult struct {
	Decisions []Decision
}

// Add runs the §4.7 lifecycle: extract facts from messages, fetch existing
// memories in scope, ask the processor to decide an action per candidate,
// then mutate the metadata store, (re)embed, update the vector index, and
// append a history row for each decision.
func (s *Service) Add(ctx context.Context, messages []llm.LlmMessage, scope Scope) (AddResult, error) {
	facts, err := s.processor.ExtractFacts(ctx, messages)
	if err != nil {
		return AddResult{}, err
	}

	existing, err := s.store.ListByScope(ctx, scope)
	if err != nil {
		return AddResult{}, err
	}

	var decisions []Decision
	for _, fact := range facts {
		decision, err := s.processor.DecideAction(ctx, fact, existing)
		if err != nil {
			return AddResult{}, err
		}
		if err := s.apply(ctx, decision, scope); err != nil {
			return AddResult{}, err
		}
		decisions = append(decisions, decision)
	}
	return AddResult{Decisions: decisions}, nil
}

func (s *Service) apply(ctx context.Context, d Decision, scope Scope) error {
	switch d.Kind {
	case ActionKindNoop:
		var memID any
		if d.TargetId != "" {
			memID = string(d.TargetId)
		}
		return s.store.exec(ctx,
			`INSERT INTO memory_history (memory_id, old_content, new_content, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
			memID, "", d.Content, string(ActionNoop), time.Now().UTC().Format(rfc3339))
	case ActionKindDelete:
		s.index.Delete(ctx, d.TargetId)
		return s.store.Delete(ctx, d.TargetId)
	case ActionKindUpdate:
		if err := s.store.Update(ctx, d.TargetId, d.Content); err != nil {
			return err
		}
		return s.reembed(ctx, d.TargetId, d.Content)
	default: // ActionKindAdd
		id := ids.NewMemoryId()
		pm := PersistedMemory{
			Id:      id,
			Content: d.Content,
			Scope:   scope,
			Hash:    contentHash(d.Content),
			Metadata: map[string]any{},
		}
		if err := s.store.Insert(ctx, pm); err != nil {
			return err
		}
		return s.reembed(ctx, id, d.Content)
	}
}

func (s *Service) reembed(ctx context.Context, id ids.MemoryId, content string) error {
	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, content)
		if err == nil {
			vec = v
		}
	}
	return s.index.Upsert(ctx, id, content, vec, map[string]string{"id": string(id)})
}

// Search embeds the query, asks the vector index for the top-k ids above
// cfg.SimilarityThreshold, then filters by the scope predicate (§4.7).
func (s *Service) Search(ctx context.Context, query string, scope Scope, limit int) ([]PersistedMemory, error) {
	matches, err := s.index.Search(ctx, query, limit, s.cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	var out []PersistedMemory
	for _, match := range matches {
		pm, err := s.store.Get(ctx, match.Id)
		if err != nil {
			continue // index/store drift: the metadata store is authoritative.
		}
		if scope.Matches(pm.Scope) {
			out = append(out, pm)
		}
	}
	return out, nil
}

// History exposes the audit log for one memory (§6).
func (s *Service) History(ctx context.Context, id ids.MemoryId) ([]HistoryRow, error) {
	return s.store.History(ctx, id)
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
