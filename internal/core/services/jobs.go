package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// DefaultJobRetention is how many finished jobs are kept by default.
const DefaultJobRetention = 100

// IngestJobs runs directory ingestion in the background and keeps the
// reports so callers can poll for per-document results. Only the most
// recently finished jobs are kept; pending and running jobs are never
// dropped.
type IngestJobs struct {
	ingest    driving.IngestionService
	ctx       context.Context
	retention int

	mu   sync.RWMutex
	jobs map[string]*domain.IngestJob
	wg   sync.WaitGroup
}

// JobsOption configures IngestJobs.
type JobsOption func(*IngestJobs)

// WithJobRetention sets how many finished jobs are kept. Values below one
// keep the default.
func WithJobRetention(n int) JobsOption {
	return func(j *IngestJobs) {
		if n > 0 {
			j.retention = n
		}
	}
}

// Ensure IngestJobs implements the interface.
var _ driving.IngestJobs = (*IngestJobs)(nil)

// NewIngestJobs creates a job tracker. Jobs run under ctx and stop when it
// is cancelled.
func NewIngestJobs(ctx context.Context, ingest driving.IngestionService, opts ...JobsOption) *IngestJobs {
	j := &IngestJobs{
		ingest:    ingest,
		ctx:       ctx,
		retention: DefaultJobRetention,
		jobs:      make(map[string]*domain.IngestJob),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start accepts path for background ingestion.
func (j *IngestJobs) Start(path string) (*domain.IngestJob, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}

	job := &domain.IngestJob{
		ID:        uuid.New().String(),
		Path:      path,
		State:     domain.JobPending,
		StartedAt: time.Now(),
	}

	j.mu.Lock()
	j.jobs[job.ID] = job
	snapshot := *job
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run(job.ID, path)

	return &snapshot, nil
}

func (j *IngestJobs) run(id, path string) {
	defer j.wg.Done()
	j.update(id, func(job *domain.IngestJob) { job.State = domain.JobRunning })

	report, err := j.ingest.IngestDirectory(j.ctx, path)

	j.update(id, func(job *domain.IngestJob) {
		job.Report = report
		job.FinishedAt = time.Now()
		if err != nil {
			job.State = domain.JobFailed
			job.Error = err.Error()
			return
		}
		job.State = domain.JobCompleted
	})
	j.prune()
	if err != nil {
		logger.Error("ingest job %s (%s) failed: %v", id, path, err)
	}
}

func (j *IngestJobs) update(id string, fn func(*domain.IngestJob)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		fn(job)
	}
}

// prune drops the oldest finished jobs beyond the retention limit.
func (j *IngestJobs) prune() {
	j.mu.Lock()
	defer j.mu.Unlock()

	var finished []*domain.IngestJob
	for _, job := range j.jobs {
		if job.State == domain.JobCompleted || job.State == domain.JobFailed {
			finished = append(finished, job)
		}
	}
	if len(finished) <= j.retention {
		return
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].FinishedAt.Before(finished[b].FinishedAt) })
	for _, job := range finished[:len(finished)-j.retention] {
		delete(j.jobs, job.ID)
	}
}

// Get returns a snapshot of the job.
func (j *IngestJobs) Get(id string) (*domain.IngestJob, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: ingest job %s", domain.ErrNotFound, id)
	}
	snapshot := *job
	return &snapshot, nil
}

// List returns snapshots of all jobs, newest first.
func (j *IngestJobs) List() []domain.IngestJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.IngestJob, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

// Wait blocks until every started job has finished.
func (j *IngestJobs) Wait() {
	j.wg.Wait()
}
