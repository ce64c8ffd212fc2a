package retrieval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"forecast_agent/pkg/core/document"
	"forecast_agent/pkg/core/logger"
)

// LoadFunc produces the chunks to index.
type LoadFunc func(ctx context.Context) ([]document.Chunk, error)

// Retriever indexes documents on first use. The index is built at most once;
// concurrent first callers wait for the builder and then share its result.
// A failed build is not remembered, so the next query tries again.
type Retriever struct {
	embedder Embedder
	load     LoadFunc

	mu    sync.Mutex
	index atomic.Pointer[MemoryStore]
}

// NewRetriever returns a retriever that indexes whatever load returns.
func NewRetriever(embedder Embedder, load LoadFunc) *Retriever {
	return &Retriever{embedder: embedder, load: load}
}

// DirectoryLoader loads a directory with the given loader, trying exts in order.
func DirectoryLoader(l *document.Loader, dir string, exts ...string) LoadFunc {
	return func(_ context.Context) ([]document.Chunk, error) {
		return l.LoadPath(dir, exts...)
	}
}

// Query returns the text of the topK chunks most similar to text. An empty
// corpus yields no results and no error.
func (r *Retriever) Query(ctx context.Context, text string, topK int) ([]string, error) {
	hits, err := r.Search(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.Text
	}
	return out, nil
}

// Search is Query with scores and chunk metadata.
func (r *Retriever) Search(ctx context.Context, text string, topK int) ([]Hit, error) {
	idx, err := r.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return idx.Search(vec, topK), nil
}

// Ready reports whether the index has been built.
func (r *Retriever) Ready() bool {
	return r.index.Load() != nil
}

func (r *Retriever) ensureIndex(ctx context.Context) (*MemoryStore, error) {
	if idx := r.index.Load(); idx != nil {
		return idx, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.index.Load(); idx != nil {
		return idx, nil
	}

	chunks, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	idx, err := Build(ctx, r.embedder, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	r.index.Store(idx)
	logger.Log.Infof("vector index ready with %d chunks", idx.Len())
	return idx, nil
}
