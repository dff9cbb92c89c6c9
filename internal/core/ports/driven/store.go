package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// VectorStore persists embedded chunks and answers nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// UpsertAll writes records. Every embedding must have exactly Dimension()
	// components, otherwise *domain.DimensionMismatchError is returned before
	// any write. Persistence failures return *domain.VectorStoreError listing
	// which records were committed.
	UpsertAll(ctx context.Context, records []domain.VectorRecord) error

	// SimilaritySearch returns at most maxResults chunks with score >= minScore,
	// sorted by descending score. An empty result is not an error.
	SimilaritySearch(
		ctx context.Context, query domain.Embedding, maxResults int, minScore float64,
	) ([]domain.ScoredChunk, error)

	// Dimension returns the fixed vector size of the store.
	Dimension() int

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
