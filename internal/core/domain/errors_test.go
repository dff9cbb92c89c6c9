package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrEmptyContent", ErrEmptyContent},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVectorStoreUnavailable", ErrVectorStoreUnavailable},
		{"ErrLoad", ErrLoad},
		{"ErrEmbeddingService", ErrEmbeddingService},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrVectorStore", ErrVectorStore},
		{"ErrGenerationService", ErrGenerationService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestLoadError(t *testing.T) {
	cause := errors.New("permission denied")
	err := error(&LoadError{Source: "docs/a.txt", Err: cause})

	assert.Equal(t, "load docs/a.txt: permission denied", err.Error())
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrVectorStore)

	var le *LoadError
	wrapped := fmt.Errorf("ingest: %w", err)
	assert.True(t, errors.As(wrapped, &le))
	assert.Equal(t, "docs/a.txt", le.Source)
}

func TestEmbeddingServiceError(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		err := &EmbeddingServiceError{Op: "embed batch", Err: errors.New("status 500")}
		assert.Equal(t, "embedding service embed batch: status 500", err.Error())
		assert.ErrorIs(t, err, ErrEmbeddingService)
	})

	t.Run("timeout", func(t *testing.T) {
		err := &EmbeddingServiceError{Op: "embed", Timeout: true, Err: errors.New("deadline")}
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestDimensionMismatchError(t *testing.T) {
	err := &DimensionMismatchError{Expected: 768, Actual: 384}
	assert.Equal(t, "dimension mismatch: got 384 components, store expects 768", err.Error())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, IsFatal(fmt.Errorf("upsert: %w", err)))

	withID := &DimensionMismatchError{Expected: 768, Actual: 384, RecordID: "r1"}
	assert.Contains(t, withID.Error(), "record r1")
}

func TestVectorStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &VectorStoreError{
		Op:        "upsert",
		Committed: []string{"a", "b"},
		Failed:    []string{"c"},
		Err:       cause,
	}

	assert.Equal(t, "vector store upsert: connection reset (2 committed, 1 failed)", err.Error())
	assert.ErrorIs(t, err, ErrVectorStore)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Partial())
	assert.False(t, IsFatal(err))

	none := &VectorStoreError{Op: "search", Err: cause}
	assert.Equal(t, "vector store search: connection reset", none.Error())
	assert.False(t, none.Partial())
}

func TestGenerationServiceError(t *testing.T) {
	cause := errors.New("model not loaded")

	err := &GenerationServiceError{Model: "llama3", Attempts: 1, Err: cause}
	assert.Equal(t, "generation with llama3 failed: model not loaded", err.Error())
	assert.ErrorIs(t, err, ErrGenerationService)
	assert.ErrorIs(t, err, cause)

	retried := &GenerationServiceError{Model: "llama3", Attempts: 3, Err: cause}
	assert.Contains(t, retried.Error(), "after 3 attempts")
}
