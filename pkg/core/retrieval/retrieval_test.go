package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast_agent/pkg/core/document"
)

func chunks(texts ...string) []document.Chunk {
	out := make([]document.Chunk, len(texts))
	for i, t := range texts {
		out[i] = document.Chunk{Source: "call.txt", Index: i, Text: t}
	}
	return out
}

var corpus = chunks(
	"Management expects AI and digital transformation deals to accelerate next year.",
	"Attrition fell to twelve percent and hiring remains steady.",
	"Risks include currency volatility and slower discretionary spending in BFSI.",
	"Operating margin improved on better utilisation and pricing.",
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "Revenue growth in AI deals")
	require.NoError(t, err)
	b, _ := e.Embed(context.Background(), "revenue GROWTH in ai deals!")
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosine(a, b), 1e-6)

	empty, _ := e.Embed(context.Background(), "")
	assert.Equal(t, 0.0, cosine(a, empty))
}

func TestQueryRanksRelevantChunkFirst(t *testing.T) {
	r := NewRetriever(NewHashEmbedder(512), func(context.Context) ([]document.Chunk, error) {
		return corpus, nil
	})

	got, err := r.Query(context.Background(), "What risks did management discuss about currency volatility?", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, corpus[2].Text, got[0])
	assert.True(t, r.Ready())
}

func TestQueryTopKLargerThanCorpus(t *testing.T) {
	r := NewRetriever(NewHashEmbedder(64), func(context.Context) ([]document.Chunk, error) {
		return corpus[:2], nil
	})
	got, err := r.Query(context.Background(), "hiring", 4)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestQueryEmptyCorpus(t *testing.T) {
	r := NewRetriever(NewHashEmbedder(64), func(context.Context) ([]document.Chunk, error) {
		return nil, nil
	})
	got, err := r.Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndexBuiltOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	r := NewRetriever(NewHashEmbedder(64), func(context.Context) ([]document.Chunk, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return corpus, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Query(context.Background(), "margin", 1)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestFailedBuildIsRetried(t *testing.T) {
	var calls atomic.Int32
	r := NewRetriever(NewHashEmbedder(64), func(context.Context) ([]document.Chunk, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("disk unavailable")
		}
		return corpus, nil
	})

	_, err := r.Query(context.Background(), "margin", 1)
	require.Error(t, err)
	assert.False(t, r.Ready())

	got, err := r.Query(context.Background(), "margin", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model not found")
}

func TestEmbeddingErrorFailsBuild(t *testing.T) {
	r := NewRetriever(failingEmbedder{}, func(context.Context) ([]document.Chunk, error) {
		return corpus, nil
	})
	_, err := r.Query(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestSearchStableOnTies(t *testing.T) {
	s := &MemoryStore{entries: []entry{
		{chunk: document.Chunk{Text: "a"}, vector: []float32{1, 0}},
		{chunk: document.Chunk{Text: "b"}, vector: []float32{1, 0}},
		{chunk: document.Chunk{Text: "c"}, vector: []float32{0, 1}},
	}}
	hits := s.Search([]float32{1, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].Chunk.Text)
	assert.Equal(t, "b", hits[1].Chunk.Text)
	assert.Equal(t, "c", hits[2].Chunk.Text)
	assert.Nil(t, s.Search([]float32{1, 0}, 0))
}

func TestDirectoryLoader(t *testing.T) {
	dir := t.TempDir()
	load := DirectoryLoader(document.NewLoader(1000, 150, 0), dir, ".txt", ".pdf")
	got, err := load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
