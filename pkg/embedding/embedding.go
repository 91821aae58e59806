// Package embedding defines the uniform embed(text) -> vector contract the
// memory subsystem consumes, plus a bounded-concurrency batch API (§4, the
// "Embedding abstraction" component). The HTTP clients behind a concrete
// Embedder are out of scope (§1); this package only defines the capability.
package embedding

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Embedder is the single capability the memory subsystem requires of an
// embedding backend: embed_text(&str) -> Vec<f32>.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a plain function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// DefaultBatchConcurrency bounds how many concurrent Embed calls BatchEmbed
// issues when the caller doesn't specify one.
const DefaultBatchConcurrency = 8

// BatchEmbed embeds every text in texts, preserving input order in the
// output slice, bounded to maxConcurrency simultaneous in-flight calls
// (§2's "batch API with bounded concurrency"). maxConcurrency <= 0 uses
// DefaultBatchConcurrency.
func BatchEmbed(ctx context.Context, e Embedder, texts []string, maxConcurrency int) ([][]float32, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultBatchConcurrency
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				return err
			}
			out[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, used by the shared-storage retriever (§4.7) when both the query
// and a candidate entry carry embeddings.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
