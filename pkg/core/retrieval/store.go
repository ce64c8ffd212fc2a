package retrieval

import (
	"context"
	"fmt"
	"sort"

	"forecast_agent/pkg/core/document"
)

// =============================================================================
// IN-MEMORY VECTOR STORE
// =============================================================================

// Hit is one search result.
type Hit struct {
	Chunk document.Chunk
	Score float64
}

type entry struct {
	chunk  document.Chunk
	vector []float32
}

// MemoryStore holds embedded chunks. It is filled once by Build and then only
// read, so it carries no lock.
type MemoryStore struct {
	entries []entry
}

// Build embeds every chunk. Any embedding error aborts the build.
func Build(ctx context.Context, emb Embedder, chunks []document.Chunk) (*MemoryStore, error) {
	s := &MemoryStore{entries: make([]entry, 0, len(chunks))}
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := emb.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", i, c.Source, err)
		}
		s.entries = append(s.entries, entry{chunk: c, vector: vec})
	}
	return s, nil
}

// Len returns the number of indexed chunks.
func (s *MemoryStore) Len() int {
	return len(s.entries)
}

// Search returns up to limit chunks ordered by descending cosine similarity.
// Ties keep insertion order.
func (s *MemoryStore) Search(query []float32, limit int) []Hit {
	if limit <= 0 || len(s.entries) == 0 {
		return nil
	}
	hits := make([]Hit, len(s.entries))
	for i, e := range s.entries {
		hits[i] = Hit{Chunk: e.chunk, Score: cosine(query, e.vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
