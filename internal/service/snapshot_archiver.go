package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// SnapshotStore saves and loads catalog snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, markets []domain.Market, now time.Time) (string, error)
	Latest(ctx context.Context) ([]domain.Market, error)
}

// SnapshotArchiver periodically writes the market list to blob storage and
// can warm an empty catalog from the newest snapshot.
type SnapshotArchiver struct {
	store    SnapshotStore
	catalog  domain.CatalogStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSnapshotArchiver creates an archiver. A non-positive interval defaults
// to 15 minutes.
func NewSnapshotArchiver(store SnapshotStore, catalog domain.CatalogStore, interval time.Duration, logger *slog.Logger) *SnapshotArchiver {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SnapshotArchiver{
		store:    store,
		catalog:  catalog,
		interval: interval,
		logger:   logger.With(slog.String("component", "snapshot_archiver")),
	}
}

// Restore loads the newest snapshot into the catalog and returns how many
// markets it held. A missing snapshot is not an error.
func (a *SnapshotArchiver) Restore(ctx context.Context) (int, error) {
	markets, err := a.store.Latest(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot: restore: %w", err)
	}
	a.catalog.UpsertMarkets(markets)
	a.logger.Info("catalog restored from snapshot", slog.Int("markets", len(markets)))
	return len(markets), nil
}

// SaveNow writes one snapshot. An empty catalog is skipped and returns "".
func (a *SnapshotArchiver) SaveNow(ctx context.Context, now time.Time) (string, error) {
	markets := a.catalog.ListMarkets()
	if len(markets) == 0 {
		return "", nil
	}
	key, err := a.store.Save(ctx, markets, now)
	if err != nil {
		return "", fmt.Errorf("snapshot: save: %w", err)
	}
	return key, nil
}

// Run saves a snapshot every interval until ctx is cancelled.
func (a *SnapshotArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			key, err := a.SaveNow(ctx, now)
			if err != nil {
				a.logger.Warn("snapshot failed", slog.String("error", err.Error()))
				continue
			}
			if key != "" {
				a.logger.Info("snapshot written", slog.String("key", key))
			}
		}
	}
}
