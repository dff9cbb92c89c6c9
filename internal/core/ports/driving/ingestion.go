package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// IngestionService turns documents into persisted vector records.
type IngestionService interface {
	// Ingest processes documents independently and reports per-document
	// outcomes. The error return is reserved for fatal configuration
	// failures such as a dimension mismatch.
	Ingest(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error)

	// IngestOne processes a single document and returns its failure, if any.
	IngestOne(ctx context.Context, doc domain.Document) error

	// IngestDirectory loads and ingests every supported file under path.
	IngestDirectory(ctx context.Context, path string) (*domain.IngestReport, error)

	// IngestUpload materialises r to a temporary file, ingests it and removes
	// the file on every path.
	IngestUpload(ctx context.Context, filename string, r io.Reader) (*domain.IngestReport, error)
}

// IngestJobs runs directory ingestion in the background.
type IngestJobs interface {
	// Start accepts a directory for background ingestion and returns the job.
	Start(path string) (*domain.IngestJob, error)

	// Get returns a snapshot of a job by ID.
	Get(id string) (*domain.IngestJob, error)

	// List returns snapshots of all known jobs, newest first.
	List() []domain.IngestJob
}
