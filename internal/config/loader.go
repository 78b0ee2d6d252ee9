package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKETSTREAM_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETSTREAM_* environment variable overrides,
// and returns the final Config. A missing file leaves the defaults in place.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETSTREAM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.APIKeyID, "KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RSAPrivateKeyPath, "KALSHI_RSA_PRIVATE_KEY_PATH")
	setDuration(&cfg.Kalshi.Timeout, "KALSHI_TIMEOUT")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaURL, "POLYMARKET_GAMMA_URL")
	setStr(&cfg.Polymarket.ClobURL, "POLYMARKET_CLOB_URL")
	setBool(&cfg.Polymarket.SyncEnabled, "POLYMARKET_SYNC_ENABLED")
	setDuration(&cfg.Polymarket.SyncInterval, "POLYMARKET_SYNC_INTERVAL")
	setInt(&cfg.Polymarket.SyncPageSize, "POLYMARKET_SYNC_PAGE_SIZE")
	setInt(&cfg.Polymarket.SyncMaxPages, "POLYMARKET_SYNC_MAX_PAGES")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")
	setDuration(&cfg.Postgres.RefreshInterval, "POSTGRES_REFRESH_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	// ── Search ──
	setBool(&cfg.Search.OnDemand, "SEARCH_ONDEMAND")
	setDuration(&cfg.Search.OnDemandTimeout, "SEARCH_ONDEMAND_TIMEOUT")
	setInt(&cfg.Search.DefaultLimit, "SEARCH_DEFAULT_LIMIT")
	setInt(&cfg.Search.MaxLimit, "SEARCH_MAX_LIMIT")
	setInt(&cfg.Search.FacetTagLimit, "SEARCH_FACET_TAG_LIMIT")

	// ── WS ──
	setInt(&cfg.WS.SendBuffer, "WS_SEND_BUFFER")
	setDuration(&cfg.WS.WriteWait, "WS_WRITE_WAIT")
	setDuration(&cfg.WS.PongWait, "WS_PONG_WAIT")
	setInt64(&cfg.WS.MaxMessageSize, "WS_MAX_MESSAGE_SIZE")
	setStr(&cfg.WS.EventsChannel, "WS_EVENTS_CHANNEL")

	// ── Poller ──
	setBool(&cfg.Poller.Enabled, "POLLER_ENABLED")
	setDuration(&cfg.Poller.Interval, "POLLER_INTERVAL")
	setDuration(&cfg.Poller.FetchTimeout, "POLLER_FETCH_TIMEOUT")
	setInt(&cfg.Poller.Concurrency, "POLLER_CONCURRENCY")
	setInt(&cfg.Poller.HistoryLimit, "POLLER_HISTORY_LIMIT")

	// ── Snapshot ──
	setBool(&cfg.Snapshot.Enabled, "SNAPSHOT_ENABLED")
	setDuration(&cfg.Snapshot.Interval, "SNAPSHOT_INTERVAL")
	setStr(&cfg.Snapshot.Prefix, "SNAPSHOT_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the prefixed
// environment variable is present and non-empty.
// ---------------------------------------------------------------------------

func lookup(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func setStr(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := lookup(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
