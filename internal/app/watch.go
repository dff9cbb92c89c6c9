package app

import (
	"context"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Watch ingests files created or changed under root until ctx is cancelled.
// Per-file failures are logged; a fatal error stops the watch.
func (a *App) Watch(ctx context.Context, root string, debounce time.Duration) error {
	changes, err := a.Loader.Watch(ctx, root, debounce)
	if err != nil {
		return err
	}
	logger.Info("watching %s for new documents", root)

	for path := range changes {
		report, err := a.Ingestion.IngestFile(ctx, path)
		if err != nil {
			if domain.IsFatal(err) {
				return err
			}
			logger.Warn("watch: ingest %s: %v", path, err)
			continue
		}
		for _, f := range report.Failures {
			logger.Warn("watch: %s: %v", f.Source, f.Err)
		}
		if report.OK() {
			logger.Info("watch: ingested %s (%d chunks)", path, report.Chunks)
		}
	}
	return nil
}
