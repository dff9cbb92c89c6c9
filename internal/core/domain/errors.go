package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no normaliser handles a MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmptyContent indicates a document produced no text.
	ErrEmptyContent = errors.New("document has no text")

	// ErrLLMUnavailable indicates the chat model is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store is not configured or unreachable.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// Error categories. Each typed error below matches its category with errors.Is.

	// ErrLoad is the category of LoadError.
	ErrLoad = errors.New("load failed")

	// ErrEmbeddingService is the category of EmbeddingServiceError.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrDimensionMismatch is the category of DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrVectorStore is the category of VectorStoreError.
	ErrVectorStore = errors.New("vector store error")

	// ErrGenerationService is the category of GenerationServiceError.
	ErrGenerationService = errors.New("generation service error")
)

// LoadError reports a document that could not be read or parsed.
// It is recoverable: the batch carries on without the document.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches the ErrLoad category.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// EmbeddingServiceError reports a network, timeout or protocol failure
// talking to the embedding model. Batch calls fail as a whole.
type EmbeddingServiceError struct {
	// Op names the failed call ("embed", "embed batch", "ping").
	Op string

	// Timeout is true when the call exceeded its deadline.
	Timeout bool

	Err error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("embedding service %s: timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("embedding service %s: %v", e.Op, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// Is matches the ErrEmbeddingService category.
func (e *EmbeddingServiceError) Is(target error) bool { return target == ErrEmbeddingService }

// DimensionMismatchError reports an embedding whose length differs from
// the store's fixed dimension. It is a configuration error and never retried.
type DimensionMismatchError struct {
	Expected int
	Actual   int

	// RecordID identifies the offending record, if any.
	RecordID string
}

func (e *DimensionMismatchError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("dimension mismatch: record %s has %d components, store expects %d",
			e.RecordID, e.Actual, e.Expected)
	}
	return fmt.Sprintf("dimension mismatch: got %d components, store expects %d", e.Actual, e.Expected)
}

// Is matches the ErrDimensionMismatch category.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// VectorStoreError reports a persistence failure. Committed lists the
// record IDs durably written before the failure; Failed lists the rest.
type VectorStoreError struct {
	Op        string
	Committed []string
	Failed    []string
	Err       error
}

func (e *VectorStoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vector store %s: %v", e.Op, e.Err)
	if len(e.Committed) > 0 || len(e.Failed) > 0 {
		fmt.Fprintf(&b, " (%d committed, %d failed)", len(e.Committed), len(e.Failed))
	}
	return b.String()
}

func (e *VectorStoreError) Unwrap() error { return e.Err }

// Is matches the ErrVectorStore category.
func (e *VectorStoreError) Is(target error) bool { return target == ErrVectorStore }

// Partial returns true when some records were committed before the failure.
func (e *VectorStoreError) Partial() bool {
	return len(e.Committed) > 0
}

// GenerationServiceError reports a failed chat model call.
// No answer is ever substituted for it.
type GenerationServiceError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *GenerationServiceError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("generation with %s failed after %d attempts: %v", e.Model, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation with %s failed: %v", e.Model, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// Is matches the ErrGenerationService category.
func (e *GenerationServiceError) Is(target error) bool { return target == ErrGenerationService }

// IsFatal reports whether err is a configuration-class failure that must
// stop a batch rather than be recorded per document.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}
