// Package memory provides an in-memory VectorStore with brute-force search.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/custodia-labs/docchat/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is an in-memory implementation of driven.VectorStore.
type Store struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.VectorRecord
	index     map[string]int
}

// New creates an empty store for vectors of the given dimension.
func New(dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}
	return &Store{
		dimension: dimension,
		index:     make(map[string]int),
	}, nil
}

// UpsertAll stores records, replacing any with the same ID.
func (s *Store) UpsertAll(ctx context.Context, records []domain.VectorRecord) error {
	if err := vectorstore.CheckDimensions(records, s.dimension); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.VectorStoreError{Op: "upsert", Failed: ids(records), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r = clone(r)
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// SimilaritySearch scores every stored record against query.
func (s *Store) SimilaritySearch(
	ctx context.Context, query domain.Embedding, maxResults int, minScore float64,
) ([]domain.ScoredChunk, error) {
	if err := vectorstore.CheckQuery(query, s.dimension); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]domain.ScoredChunk, 0, len(s.records))
	for i, r := range s.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &domain.VectorStoreError{Op: "search", Err: err}
			}
		}
		candidates = append(candidates, domain.ScoredChunk{
			Chunk: clone(r).Chunk,
			Score: vectorstore.Relevance(query, r.Embedding),
		})
	}
	return vectorstore.Rank(candidates, maxResults, minScore), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the fixed vector size.
func (s *Store) Dimension() int {
	return s.dimension
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func clone(r domain.VectorRecord) domain.VectorRecord {
	r.Embedding = append(domain.Embedding(nil), r.Embedding...)
	r.Chunk.Metadata = maps.Clone(r.Chunk.Metadata)
	return r
}

func ids(records []domain.VectorRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
