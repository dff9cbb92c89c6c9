// Package vectorstore holds helpers shared by the VectorStore adapters.
package vectorstore

import (
	"cmp"
	"math"
	"slices"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// CheckDimensions returns a *domain.DimensionMismatchError for the first
// record whose embedding length differs from dim.
func CheckDimensions(records []domain.VectorRecord, dim int) error {
	for _, r := range records {
		if r.Embedding.Dim() != dim {
			return &domain.DimensionMismatchError{Expected: dim, Actual: r.Embedding.Dim(), RecordID: r.ID}
		}
	}
	return nil
}

// CheckQuery validates a query embedding against the store dimension.
func CheckQuery(query domain.Embedding, dim int) error {
	if query.Dim() != dim {
		return &domain.DimensionMismatchError{Expected: dim, Actual: query.Dim()}
	}
	return nil
}

// Relevance maps cosine similarity onto [0, 1] as (1 + cos) / 2.
// A zero vector scores 0.5, the relevance of an orthogonal vector.
func Relevance(a, b domain.Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0.5
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return clamp((1+cos)/2, 0, 1)
}

// FromCosineDistance converts a pgvector cosine distance in [0, 2] into a
// relevance score.
func FromCosineDistance(d float64) float64 {
	return clamp((2-d)/2, 0, 1)
}

// Rank drops candidates below minScore, sorts by descending score and
// truncates to maxResults. Ties keep insertion order.
func Rank(candidates []domain.ScoredChunk, maxResults int, minScore float64) []domain.ScoredChunk {
	out := slices.DeleteFunc(candidates, func(sc domain.ScoredChunk) bool {
		return sc.Score < minScore
	})
	slices.SortStableFunc(out, func(a, b domain.ScoredChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if maxResults >= 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
