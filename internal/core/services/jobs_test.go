package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestIngestJobs(t *testing.T) {
	t.Run("completed job keeps its report", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))

		jobs := NewIngestJobs(context.Background(), f.svc)
		job, err := jobs.Start(dir)
		require.NoError(t, err)
		assert.Equal(t, domain.JobPending, job.State)
		assert.NotEmpty(t, job.ID)

		jobs.Wait()

		got, err := jobs.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobCompleted, got.State)
		require.NotNil(t, got.Report)
		assert.Equal(t, 1, got.Report.Chunks)
		assert.False(t, got.FinishedAt.IsZero())
	})

	t.Run("fatal error fails the job", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})

		jobs := NewIngestJobs(context.Background(), f.svc)
		job, err := jobs.Start(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		jobs.Wait()

		got, err := jobs.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, got.State)
		assert.Contains(t, got.Error, "does not exist")
	})

	t.Run("list and lookup", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})
		jobs := NewIngestJobs(context.Background(), f.svc)

		_, err := jobs.Start(t.TempDir())
		require.NoError(t, err)
		_, err = jobs.Start(t.TempDir())
		require.NoError(t, err)
		jobs.Wait()

		assert.Len(t, jobs.List(), 2)

		_, err = jobs.Get("unknown")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = jobs.Start(" ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("oldest finished jobs are dropped beyond retention", func(t *testing.T) {
		f := newIngestFixture(t, IngestOptions{})
		jobs := NewIngestJobs(context.Background(), f.svc, WithJobRetention(2))

		var ids []string
		for range 4 {
			job, err := jobs.Start(t.TempDir())
			require.NoError(t, err)
			jobs.Wait()
			ids = append(ids, job.ID)
		}

		assert.Len(t, jobs.List(), 2)
		for _, id := range ids[:2] {
			_, err := jobs.Get(id)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}
		for _, id := range ids[2:] {
			got, err := jobs.Get(id)
			require.NoError(t, err)
			assert.False(t, got.FinishedAt.IsZero())
		}
	})

	t.Run("non-positive retention keeps the default", func(t *testing.T) {
		jobs := NewIngestJobs(context.Background(), nil, WithJobRetention(0))
		assert.Equal(t, DefaultJobRetention, jobs.retention)
	})
}
