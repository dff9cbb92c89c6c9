package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
// Implementations report every failure as *domain.EmbeddingServiceError.
type EmbeddingService interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) (domain.Embedding, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The i-th output corresponds to the i-th input. The call fails as a
	// whole: on error no embeddings are returned.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
