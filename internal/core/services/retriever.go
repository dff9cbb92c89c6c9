package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// Retriever embeds a query and looks up the closest stored chunks.
// It never writes to the store.
type Retriever struct {
	embedder   driven.EmbeddingService
	store      driven.VectorStore
	maxResults int
	minScore   float64
}

// NewRetriever creates a retriever returning at most maxResults chunks
// scoring at least minScore.
func NewRetriever(embedder driven.EmbeddingService, store driven.VectorStore, maxResults int, minScore float64) *Retriever {
	return &Retriever{
		embedder:   embedder,
		store:      store,
		maxResults: maxResults,
		minScore:   minScore,
	}
}

// Retrieve returns the ranked context for query. A blank query or a query
// with no match above the threshold yields an empty context, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*domain.RetrievedContext, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	result := &domain.RetrievedContext{Query: query}
	if strings.TrimSpace(query) == "" {
		logger.Debug("Empty query, returning no context")
		return result, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := r.store.SimilaritySearch(ctx, embedding, r.maxResults, r.minScore)
	if err != nil {
		return nil, err
	}
	result.Chunks = matches

	if len(matches) == 0 {
		logger.Debug("No chunk scored at least %.2f", r.minScore)
	} else {
		logger.Debug("Retrieved %d chunks (best %.3f, worst %.3f)",
			len(matches), matches[0].Score, matches[len(matches)-1].Score)
	}
	return result, nil
}
