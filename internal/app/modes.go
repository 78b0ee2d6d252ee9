package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/feed"
	"github.com/alanyoungcy/marketstream/internal/search"
	"github.com/alanyoungcy/marketstream/internal/server"
	"github.com/alanyoungcy/marketstream/internal/server/handler"
	"github.com/alanyoungcy/marketstream/internal/server/ws"
	"github.com/alanyoungcy/marketstream/internal/service"
)

const shutdownTimeout = 5 * time.Second

// APIMode serves search, market endpoints and socket sessions, and polls
// quotes for subscribed markets. Markets synced by a separate ingest process
// are picked up from Postgres every refresh interval.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startCatalogRefresh(ctx, g, deps)
	a.startAPI(ctx, g, deps)
	return g.Wait()
}

// IngestMode keeps the catalog filled from Polymarket and writes catalog
// snapshots. It serves no HTTP traffic.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngest(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the api and ingest workloads in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngest(ctx, g, deps)
	a.startAPI(ctx, g, deps)
	return g.Wait()
}

// warmCatalog loads the catalog from Postgres when it is configured and
// otherwise from the newest snapshot.
func (a *App) warmCatalog(ctx context.Context, deps *Dependencies) error {
	if deps.Persistent != nil && deps.MarketStore != nil {
		if err := deps.Persistent.Hydrate(ctx); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		return nil
	}
	if deps.Snapshots == nil {
		return nil
	}
	archiver := service.NewSnapshotArchiver(deps.Snapshots, deps.Catalog, a.cfg.Snapshot.Interval.Duration, a.logger)
	if _, err := archiver.Restore(ctx); err != nil {
		a.logger.WarnContext(ctx, "snapshot restore failed, starting with an empty catalog",
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// startCatalogRefresh adds the Postgres catalog reload to g when a market
// store is configured.
func (a *App) startCatalogRefresh(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Postgres.RefreshInterval.Duration
	if deps.Persistent == nil || deps.MarketStore == nil || interval <= 0 {
		return
	}
	refresher := service.NewCatalogRefresher(deps.Persistent, interval, a.logger)
	g.Go(func() error {
		return refresher.Run(ctx)
	})
}

// startIngest adds the market sync and snapshot goroutines to g.
func (a *App) startIngest(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Polymarket.SyncEnabled {
		syncer := service.NewMarketSync(deps.Gamma, deps.Catalog, deps.LockManager, service.MarketSyncConfig{
			Interval: a.cfg.Polymarket.SyncInterval.Duration,
			PageSize: a.cfg.Polymarket.SyncPageSize,
			MaxPages: a.cfg.Polymarket.SyncMaxPages,
		}, a.logger)
		g.Go(func() error {
			return syncer.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "polymarket sync disabled")
	}

	if deps.Snapshots != nil {
		archiver := service.NewSnapshotArchiver(deps.Snapshots, deps.Catalog, a.cfg.Snapshot.Interval.Duration, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}
}

// startAPI adds the socket hub, the quote poller and the HTTP server to g.
// The server is shut down gracefully when ctx is cancelled.
func (a *App) startAPI(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(ws.NewRegistry(), deps.SignalBus, ws.Config{
		SendBuffer:     a.cfg.WS.SendBuffer,
		WriteWait:      a.cfg.WS.WriteWait.Duration,
		PongWait:       a.cfg.WS.PongWait.Duration,
		MaxMessageSize: a.cfg.WS.MaxMessageSize,
		EventsChannel:  a.cfg.WS.EventsChannel,
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	if a.cfg.Poller.Enabled {
		router := service.NewOrderbookRouter(deps.Kalshi, deps.Clob)
		prices := service.NewPriceService(deps.Catalog, deps.SignalBus, a.cfg.WS.EventsChannel, a.logger)
		poller := feed.NewQuotePoller(hub.Registry(), deps.Catalog, router, prices, feed.PollerConfig{
			Interval:     a.cfg.Poller.Interval.Duration,
			FetchTimeout: a.cfg.Poller.FetchTimeout.Duration,
			Concurrency:  a.cfg.Poller.Concurrency,
		}, a.logger)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}

	var fetcher domain.RemoteFetcher
	if a.cfg.Search.OnDemand {
		fetcher = service.NewOnDemandFetcher(deps.Kalshi, deps.Catalog, a.logger)
	}
	engine := search.NewEngine(deps.Catalog, fetcher, search.Config{
		OnDemandSource:  domain.SourceKalshi,
		OnDemandTimeout: a.cfg.Search.OnDemandTimeout.Duration,
		FacetTagLimit:   a.cfg.Search.FacetTagLimit,
	}, a.logger)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler(a.cfg.Mode, hub.ClientCount, hub.Registry().Len, deps.Memory.Len),
		Markets: handler.NewMarketHandler(
			service.NewMarketService(deps.Catalog),
			engine,
			a.cfg.Search.DefaultLimit,
			a.cfg.Search.MaxLimit,
			a.logger,
		),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
