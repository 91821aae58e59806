package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/embedding"
)

// scored pairs a candidate entry with its query similarity score.
type scored struct {
	entry *Entry
	score float64
}

// retrieve implements §4.7's five-step retrieval algorithm: filter, score,
// drop below threshold, sort, touch.
func (m *Manager) retrieve(ctx context.Context, q Query) []*Entry {
	now := time.Now()
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var queryEmbedding []float32
	if m.embedder != nil && q.Text != "" {
		if vec, err := m.embedder.Embed(ctx, q.Text); err == nil {
			queryEmbedding = vec
		}
	}

	var candidates []*Entry
	if q.MemoryType != nil {
		candidates = m.storage.all(q.MemoryType)
	} else {
		candidates = m.storage.all(nil)
	}

	var results []scored
	for _, e := range candidates {
		if q.SessionId != nil {
			if e.SessionId == nil || *e.SessionId != *q.SessionId {
				continue
			}
		}
		if len(q.Tags) > 0 && !hasAnyTag(e.Metadata.Tags, q.Tags) {
			continue
		}

		score := similarity(q.Text, queryEmbedding, e)
		if score < q.MinSimilarity {
			continue
		}
		results = append(results, scored{entry: e, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].entry.ImportanceScore != results[j].entry.ImportanceScore {
			return results[i].entry.ImportanceScore > results[j].entry.ImportanceScore
		}
		return results[i].entry.LastAccessed.After(results[j].entry.LastAccessed)
	})

	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]*Entry, 0, len(results))
	for _, r := range results {
		m.storage.touch(r.entry.Id, now)
		out = append(out, r.entry)
	}
	return out
}

// similarity implements §4.7's scoring rule: cosine similarity when both the
// query and the entry carry embeddings, else token overlap; an empty query
// always scores 1.0 so filters alone select the result set (§7 local
// recovery (c)).
func similarity(queryText string, queryEmbedding []float32, e *Entry) float64 {
	if strings.TrimSpace(queryText) == "" {
		return 1.0
	}
	if len(queryEmbedding) > 0 && len(e.Embedding) > 0 {
		return embedding.CosineSimilarity(queryEmbedding, e.Embedding)
	}
	return tokenOverlap(queryText, e.Content)
}

func tokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	overlap := 0
	for t := range aTokens {
		if bTokens[t] {
			overlap++
		}
	}
	union := len(aTokens) + len(bTokens) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[strings.Trim(f, ".,!?;:\"'()")] = true
	}
	return out
}

func hasAnyTag(entryTags, wantTags []string) bool {
	set := make(map[string]bool, len(entryTags))
	for _, t := range entryTags {
		set[t] = true
	}
	for _, w := range wantTags {
		if set[w] {
			return true
		}
	}
	return false
}
