package domain

import (
	"fmt"
	"time"
)

// EmptyTextPolicy decides what happens to documents whose text is empty.
type EmptyTextPolicy string

const (
	// EmptyTextSkip records the document as skipped and moves on.
	EmptyTextSkip EmptyTextPolicy = "skip"

	// EmptyTextFail reports the document as a LoadError.
	EmptyTextFail EmptyTextPolicy = "fail"
)

// IsValid returns true if the policy is recognised.
func (p EmptyTextPolicy) IsValid() bool {
	return p == EmptyTextSkip || p == EmptyTextFail
}

// DocumentFailure records why a single document was not ingested.
type DocumentFailure struct {
	// Source is the document's file path or upload name.
	Source string

	// Err is the typed failure (LoadError, EmbeddingServiceError, VectorStoreError).
	Err error
}

// Error implements error so failures can be joined or logged directly.
func (f DocumentFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

// Unwrap returns the underlying failure.
func (f DocumentFailure) Unwrap() error {
	return f.Err
}

// IngestReport summarises an ingestion batch with per-document granularity.
type IngestReport struct {
	// Documents is the number of documents considered.
	Documents int

	// Chunks is the number of records committed to the store.
	Chunks int

	// Succeeded lists the sources that were fully committed.
	Succeeded []string

	// Skipped lists sources with no text under the skip policy.
	Skipped []string

	// Failures lists the sources that failed, with their errors.
	Failures []DocumentFailure

	// Duration is the wall time of the batch.
	Duration time.Duration
}

// OK returns true when no document failed.
func (r *IngestReport) OK() bool {
	return r != nil && len(r.Failures) == 0
}

// Merge folds another report into r.
func (r *IngestReport) Merge(other *IngestReport) {
	if other == nil {
		return
	}
	r.Documents += other.Documents
	r.Chunks += other.Chunks
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Failures = append(r.Failures, other.Failures...)
}

// JobState is the lifecycle state of an asynchronous ingestion job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// IngestJob tracks an ingestion started in the background.
type IngestJob struct {
	// ID uniquely identifies the job.
	ID string

	// Path is the directory being ingested.
	Path string

	// State is the current lifecycle state.
	State JobState

	// Report is set once the job finishes.
	Report *IngestReport

	// Error is the fatal error that stopped the job, if any.
	Error string

	// StartedAt is when the job was accepted.
	StartedAt time.Time

	// FinishedAt is zero until the job ends.
	FinishedAt time.Time
}
