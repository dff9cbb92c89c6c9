package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func scored(text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: domain.Chunk{Content: text}, Score: score}
}

func TestRetriever_Retrieve(t *testing.T) {
	embedder := newMockEmbedder(testDim)
	store := newMockStore(testDim)
	store.results = []domain.ScoredChunk{
		scored("low", 0.55),
		scored("best", 0.95),
		scored("good", 0.8),
		scored("ok", 0.7),
	}
	r := NewRetriever(embedder, store, 2, 0.6)

	rc, err := r.Retrieve(context.Background(), "what is best?")

	require.NoError(t, err)
	assert.Equal(t, "what is best?", rc.Query)
	assert.Equal(t, []string{"best", "good"}, rc.Texts())
	assert.Equal(t, 2, store.lastLimit)
	assert.InDelta(t, 0.6, store.lastMin, 1e-9)
	assert.Equal(t, []string{"what is best?"}, embedder.queries)

	for i := 1; i < len(rc.Chunks); i++ {
		assert.GreaterOrEqual(t, rc.Chunks[i-1].Score, rc.Chunks[i].Score)
	}
}

func TestRetriever_NothingAboveThreshold(t *testing.T) {
	store := newMockStore(testDim)
	store.results = []domain.ScoredChunk{scored("weak", 0.5)}
	r := NewRetriever(newMockEmbedder(testDim), store, 5, 0.9)

	rc, err := r.Retrieve(context.Background(), "question")

	require.NoError(t, err)
	assert.True(t, rc.IsEmpty())
}

func TestRetriever_BlankQuery(t *testing.T) {
	embedder := newMockEmbedder(testDim)
	store := newMockStore(testDim)
	r := NewRetriever(embedder, store, 5, 0.5)

	rc, err := r.Retrieve(context.Background(), "   ")

	require.NoError(t, err)
	assert.True(t, rc.IsEmpty())
	assert.Empty(t, embedder.queries)
	assert.Zero(t, store.searches)
}

func TestRetriever_Errors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		embedder := newMockEmbedder(testDim)
		embedder.failOn = "boom"
		store := newMockStore(testDim)

		_, err := NewRetriever(embedder, store, 5, 0.5).Retrieve(context.Background(), "boom")

		assert.ErrorIs(t, err, domain.ErrEmbeddingService)
		assert.Zero(t, store.searches)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMockStore(testDim)
		store.searchErr = &domain.VectorStoreError{Op: "search", Err: errors.New("timeout")}

		_, err := NewRetriever(newMockEmbedder(testDim), store, 5, 0.5).Retrieve(context.Background(), "q")

		assert.ErrorIs(t, err, domain.ErrVectorStore)
	})
}
