package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	s3blob "github.com/alanyoungcy/marketstream/internal/blob/s3"
	"github.com/alanyoungcy/marketstream/internal/cache/local"
	"github.com/alanyoungcy/marketstream/internal/cache/redis"
	"github.com/alanyoungcy/marketstream/internal/catalog"
	"github.com/alanyoungcy/marketstream/internal/config"
	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/platform/kalshi"
	"github.com/alanyoungcy/marketstream/internal/platform/polymarket"
	"github.com/alanyoungcy/marketstream/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the application modes need.
// Optional backends are nil when not configured. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Catalog is the market catalog every component reads and writes. It is
	// a Persistent decorator when Postgres or Redis is configured.
	Catalog    domain.CatalogStore
	Memory     *catalog.Memory
	Persistent *catalog.Persistent

	// Stores
	MarketStore domain.MarketStore
	QuoteStore  domain.QuoteStore

	// Caches
	BookCache   domain.OrderbookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Snapshots *s3blob.Snapshots

	// Venue clients
	Kalshi *kalshi.Client
	Gamma  *polymarket.GammaClient
	Clob   *polymarket.ClobClient
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.QuoteStore = postgres.NewQuoteStore(pool)
	}

	// --- Redis, or in-process stand-ins ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewOrderbookCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.SignalBus = local.NewBus(cfg.WS.SendBuffer)
	}

	// --- S3 catalog snapshots ---
	if cfg.Snapshot.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Snapshots = s3blob.NewSnapshots(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			cfg.Snapshot.Prefix,
		)
	}

	// --- Catalog ---
	mem := catalog.NewMemory(cfg.Poller.HistoryLimit)
	deps.Memory = mem
	deps.Catalog = mem
	if deps.MarketStore != nil || deps.BookCache != nil {
		deps.Persistent = catalog.NewPersistent(mem, deps.MarketStore, deps.QuoteStore, deps.BookCache, logger)
		deps.Catalog = deps.Persistent
	}

	// --- Venue clients ---
	kc, err := newKalshiClient(cfg.Kalshi)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: kalshi: %w", err)
	}
	deps.Kalshi = kc
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaURL)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobURL)

	return deps, cleanup, nil
}

// newKalshiClient builds the Kalshi client and loads its signing key when one
// is configured.
func newKalshiClient(cfg config.KalshiConfig) (*kalshi.Client, error) {
	var opts []kalshi.Option
	if cfg.Timeout.Duration > 0 {
		opts = append(opts, kalshi.WithTimeout(cfg.Timeout.Duration))
	}
	client := kalshi.NewClient(cfg.BaseURL, cfg.APIKeyID, opts...)

	if cfg.RSAPrivateKeyPath == "" {
		return client, nil
	}
	pemBytes, err := os.ReadFile(cfg.RSAPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	if err := client.SetRSAPrivateKey(pemBytes); err != nil {
		return nil, err
	}
	return client, nil
}
