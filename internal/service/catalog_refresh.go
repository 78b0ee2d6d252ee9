package service

import (
	"context"
	"log/slog"
	"time"
)

// CatalogSource reloads the in-memory catalog from durable storage.
type CatalogSource interface {
	Refresh(ctx context.Context) (int, error)
}

// CatalogRefresher periodically pulls markets written by other processes
// into this process's catalog. An api-mode process relies on it to see what
// a separate ingest process syncs.
type CatalogRefresher struct {
	source   CatalogSource
	interval time.Duration
	logger   *slog.Logger
}

// NewCatalogRefresher creates a CatalogRefresher. A non-positive interval
// defaults to one minute.
func NewCatalogRefresher(source CatalogSource, interval time.Duration, logger *slog.Logger) *CatalogRefresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CatalogRefresher{
		source:   source,
		interval: interval,
		logger:   logger.With(slog.String("component", "catalog_refresh")),
	}
}

// Run refreshes every interval until ctx is cancelled. The first refresh
// happens after one interval because the catalog is hydrated at startup.
// Failures are logged and do not stop the loop.
func (r *CatalogRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		added, err := r.source.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("catalog refresh failed", slog.String("error", err.Error()))
			continue
		}
		if added > 0 {
			r.logger.Info("catalog refreshed", slog.Int("new_markets", added))
		}
	}
}
