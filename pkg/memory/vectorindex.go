package memory

import (
	"context"

	"github.com/philippgille/chromem-go"

	"github.com/graphbit-dev/graphbit/pkg/embedding"
	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// VectorIndex is the in-process vector index keyed by memory id that backs
// the persistent MemoryService's search (§4.7, §B domain stack); the
// short-lived Manager's retriever does not use it. Backed by chromem-go, an
// embedded single-process vector store — matching §4.7's "in-process vector
// index" requirement without a network round trip.
type VectorIndex struct {
	collection *chromem.Collection
}

// NewVectorIndex creates a fresh in-memory chromem-go collection. embedder
// supplies vectors for documents added via Upsert with a nil embedding.
func NewVectorIndex(embedder embedding.Embedder) (*VectorIndex, error) {
	db := chromem.NewDB()
	ef := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection("graphbit-memory", nil, ef)
	if err != nil {
		return nil, ids.Wrap(ids.KindMemory, "create vector index collection", err)
	}
	return &VectorIndex{collection: collection}, nil
}

// Upsert indexes content under id, embedding it via the collection's
// EmbeddingFunc when embedding is nil.
func (v *VectorIndex) Upsert(ctx context.Context, id ids.MemoryId, content string, embeddingVec []float32, metadata map[string]string) error {
	doc := chromem.Document{
		ID:        string(id),
		Content:   content,
		Metadata:  metadata,
		Embedding: embeddingVec,
	}
	if err := v.collection.AddDocument(ctx, doc); err != nil {
		return ids.Wrap(ids.KindMemory, "index memory embedding", err)
	}
	return nil
}

// Delete removes id from the index. chromem-go has no single-id delete in
// older versions; this is modeled as a best-effort no-op failure tolerance
// since a stale index entry is filtered out by the metadata store on the
// next search anyway (the metadata store is the source of truth).
func (v *VectorIndex) Delete(ctx context.Context, id ids.MemoryId) {
	_ = v.collection.Delete(ctx, nil, nil, string(id))
}

// VectorMatch is one ranked result from the index.
type VectorMatch struct {
	Id         ids.MemoryId
	Similarity float64
}

// Search returns the top-k matches above similarityThreshold for query,
// embedded via the collection's EmbeddingFunc (§4.7 "search embeds the
// query, asks the vector index for the top-k ids above
// similarity_threshold").
func (v *VectorIndex) Search(ctx context.Context, query string, k int, similarityThreshold float64) ([]VectorMatch, error) {
	if k <= 0 {
		k = 10
	}
	results, err := v.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, ids.Wrap(ids.KindMemory, "query vector index", err)
	}
	out := make([]VectorMatch, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < similarityThreshold {
			continue
		}
		out = append(out, VectorMatch{Id: ids.MemoryId(r.ID), Similarity: float64(r.Similarity)})
	}
	return out, nil
}
