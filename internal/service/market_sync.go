package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// SyncLockKey is the LockManager key held for the duration of a sync cycle.
const SyncLockKey = "sync:polymarket"

// GammaMarkets is the part of the Gamma client MarketSync uses.
type GammaMarkets interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]domain.Market, int, error)
}

// MarketSyncConfig tunes the Polymarket sync loop.
type MarketSyncConfig struct {
	Interval time.Duration
	PageSize int
	MaxPages int
}

func (c MarketSyncConfig) withDefaults() MarketSyncConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	return c
}

// MarketSync periodically loads active Polymarket markets into the catalog.
// When a LockManager is configured only one process syncs per cycle.
type MarketSync struct {
	gamma   GammaMarkets
	catalog domain.CatalogWriter
	locks   domain.LockManager
	cfg     MarketSyncConfig
	logger  *slog.Logger
}

// NewMarketSync creates a MarketSync. locks may be nil.
func NewMarketSync(gamma GammaMarkets, catalog domain.CatalogWriter, locks domain.LockManager, cfg MarketSyncConfig, logger *slog.Logger) *MarketSync {
	return &MarketSync{
		gamma:   gamma,
		catalog: catalog,
		locks:   locks,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "market_sync")),
	}
}

// Run syncs immediately and then every Interval until ctx is cancelled.
// Cycle failures are logged and do not stop the loop.
func (s *MarketSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if n, err := s.SyncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("sync cycle failed", slog.String("error", err.Error()))
		} else if n > 0 {
			s.logger.Info("synced markets", slog.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SyncOnce runs one cycle and returns the number of markets upserted. A
// cycle skipped because another process holds the lock returns 0 and nil.
func (s *MarketSync) SyncOnce(ctx context.Context) (int, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, SyncLockKey, s.cfg.Interval)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Debug("sync skipped, lock held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("market_sync: lock: %w", err)
		}
		defer unlock()
	}

	total := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		markets, raw, err := s.gamma.GetMarkets(ctx, s.cfg.PageSize, page*s.cfg.PageSize)
		if err != nil {
			return total, fmt.Errorf("market_sync: page %d: %w", page, err)
		}
		if len(markets) > 0 {
			s.catalog.UpsertMarkets(markets)
			total += len(markets)
		}
		if raw < s.cfg.PageSize {
			break
		}
	}
	return total, nil
}
