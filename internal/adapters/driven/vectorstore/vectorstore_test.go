package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestCheckDimensions(t *testing.T) {
	records := []domain.VectorRecord{
		{ID: "a", Embedding: domain.Embedding{1, 2, 3}},
		{ID: "b", Embedding: domain.Embedding{1, 2}},
	}

	err := CheckDimensions(records, 3)

	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, "b", dimErr.RecordID)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)
	assert.NoError(t, CheckDimensions(records[:1], 3))
}

func TestCheckQuery(t *testing.T) {
	assert.NoError(t, CheckQuery(domain.Embedding{1, 2}, 2))
	assert.ErrorIs(t, CheckQuery(domain.Embedding{1}, 2), domain.ErrDimensionMismatch)
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Embedding
		want float64
	}{
		{"identical", domain.Embedding{1, 0}, domain.Embedding{2, 0}, 1},
		{"opposite", domain.Embedding{1, 0}, domain.Embedding{-1, 0}, 0},
		{"orthogonal", domain.Embedding{1, 0}, domain.Embedding{0, 1}, 0.5},
		{"zero vector", domain.Embedding{0, 0}, domain.Embedding{1, 1}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Relevance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFromCosineDistance(t *testing.T) {
	assert.InDelta(t, 1.0, FromCosineDistance(0), 1e-9)
	assert.InDelta(t, 0.5, FromCosineDistance(1), 1e-9)
	assert.InDelta(t, 0.0, FromCosineDistance(2), 1e-9)
	assert.InDelta(t, 1.0, FromCosineDistance(-1e-7), 1e-9, "clamped")
}

func TestRank(t *testing.T) {
	in := []domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: "low"}, Score: 0.4},
		{Chunk: domain.Chunk{ID: "mid"}, Score: 0.7},
		{Chunk: domain.Chunk{ID: "top"}, Score: 0.9},
		{Chunk: domain.Chunk{ID: "mid2"}, Score: 0.7},
	}

	got := Rank(in, 2, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, "top", got[0].Chunk.ID)
	assert.Equal(t, "mid", got[1].Chunk.ID)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, 5, 0))
	assert.Empty(t, Rank([]domain.ScoredChunk{{Score: 0.1}}, 5, 0.2))
}
