package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketstream/internal/cache/local"
	"github.com/alanyoungcy/marketstream/internal/catalog"
	"github.com/alanyoungcy/marketstream/internal/config"
	"github.com/alanyoungcy/marketstream/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sharedMarketStore struct {
	mu      sync.Mutex
	markets []domain.Market
}

func (s *sharedMarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets = append(s.markets, markets...)
	return nil
}

func (s *sharedMarketStore) ListAll(context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Market(nil), s.markets...), nil
}

func TestWireWithoutBackends(t *testing.T) {
	cfg := config.Defaults()

	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.Persistent != nil || deps.MarketStore != nil || deps.Snapshots != nil {
		t.Errorf("optional backends wired without configuration: %+v", deps)
	}
	if deps.RateLimiter != nil || deps.LockManager != nil {
		t.Error("redis services wired without redis")
	}
	if _, ok := deps.SignalBus.(*local.Bus); !ok {
		t.Errorf("SignalBus = %T, want *local.Bus", deps.SignalBus)
	}
	if deps.Catalog == nil || deps.Kalshi == nil || deps.Gamma == nil || deps.Clob == nil {
		t.Error("core dependencies missing")
	}
}

func TestWireRejectsMissingKalshiKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Kalshi.APIKeyID = "id"
	cfg.Kalshi.RSAPrivateKeyPath = t.TempDir() + "/missing.pem"

	if _, _, err := Wire(context.Background(), &cfg, testLogger()); err == nil {
		t.Fatal("expected error for unreadable key")
	}
}

func TestRunAPIModeStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeAPI
	cfg.Server.Port = 0
	cfg.Poller.Enabled = false

	a := New(&cfg, testLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want nil or context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCatalogRefreshSeesMarketsFromIngest(t *testing.T) {
	cfg := config.Defaults()
	cfg.Postgres.RefreshInterval.Duration = 10 * time.Millisecond
	a := New(&cfg, testLogger())

	store := &sharedMarketStore{markets: []domain.Market{{ID: "pm-1"}}}
	mem := catalog.NewMemory(0)
	deps := &Dependencies{
		Memory:      mem,
		MarketStore: store,
		Persistent:  catalog.NewPersistent(mem, store, nil, nil, testLogger()),
	}
	deps.Catalog = deps.Persistent

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.warmCatalog(ctx, deps); err != nil {
		t.Fatalf("warmCatalog: %v", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	a.startCatalogRefresh(gctx, g, deps)

	// The ingest process writes a market after this process started.
	_ = store.UpsertBatch(ctx, []domain.Market{{ID: "pm-2"}})

	deadline := time.Now().Add(2 * time.Second)
	for mem.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := g.Wait(); err != nil {
		t.Errorf("refresh loop = %v", err)
	}
	if _, ok := mem.GetMarket("pm-2"); !ok {
		t.Errorf("catalog size = %d, pm-2 never became visible", mem.Len())
	}
}

func TestCatalogRefreshNeedsMarketStore(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, testLogger())

	g := new(errgroup.Group)
	a.startCatalogRefresh(context.Background(), g, &Dependencies{Memory: catalog.NewMemory(0)})
	if err := g.Wait(); err != nil {
		t.Errorf("Wait = %v", err)
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"

	a := New(&cfg, testLogger())
	defer a.Close()
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}
