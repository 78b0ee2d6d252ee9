// Package config defines the top-level configuration for marketstream and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Operating modes.
const (
	ModeAPI    = "api"
	ModeIngest = "ingest"
	ModeFull   = "full"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETSTREAM_* environment variables.
type Config struct {
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Search     SearchConfig     `toml:"search"`
	WS         WSConfig         `toml:"ws"`
	Poller     PollerConfig     `toml:"poller"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// KalshiConfig holds the Kalshi REST endpoint and optional API credentials.
// Public market data needs no credentials.
type KalshiConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKeyID          string   `toml:"api_key_id"`
	RSAPrivateKeyPath string   `toml:"rsa_private_key_path"`
	Timeout           duration `toml:"timeout"`
}

// PolymarketConfig holds the public Polymarket endpoints and the market sync
// schedule.
type PolymarketConfig struct {
	GammaURL     string   `toml:"gamma_url"`
	ClobURL      string   `toml:"clob_url"`
	SyncEnabled  bool     `toml:"sync_enabled"`
	SyncInterval duration `toml:"sync_interval"`
	SyncPageSize int      `toml:"sync_page_size"`
	SyncMaxPages int      `toml:"sync_max_pages"`
}

// PostgresConfig holds PostgreSQL connection parameters. The catalog is kept
// in memory only when Enabled is false.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`

	// RefreshInterval is how often an api-mode process reloads markets
	// written by other processes. Zero disables the reload.
	RefreshInterval duration `toml:"refresh_interval"`
}

// RedisConfig holds Redis connection parameters. Without Redis the event bus
// is in-process and rate limiting and sync locks are off.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SearchConfig tunes the search engine and its on-demand Kalshi fetch.
type SearchConfig struct {
	OnDemand        bool     `toml:"ondemand"`
	OnDemandTimeout duration `toml:"ondemand_timeout"`
	DefaultLimit    int      `toml:"default_limit"`
	MaxLimit        int      `toml:"max_limit"`
	FacetTagLimit   int      `toml:"facet_tag_limit"`
}

// WSConfig tunes socket sessions.
type WSConfig struct {
	SendBuffer     int      `toml:"send_buffer"`
	WriteWait      duration `toml:"write_wait"`
	PongWait       duration `toml:"pong_wait"`
	MaxMessageSize int64    `toml:"max_message_size"`
	EventsChannel  string   `toml:"events_channel"`
}

// PollerConfig tunes the quote poller for subscribed markets.
type PollerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Interval     duration `toml:"interval"`
	FetchTimeout duration `toml:"fetch_timeout"`
	Concurrency  int      `toml:"concurrency"`
	HistoryLimit int      `toml:"history_limit"`
}

// SnapshotConfig controls catalog snapshots in object storage.
type SnapshotConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the per-IP request budget per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
			Timeout: duration{10 * time.Second},
		},
		Polymarket: PolymarketConfig{
			GammaURL:     "https://gamma-api.polymarket.com",
			ClobURL:      "https://clob.polymarket.com",
			SyncEnabled:  true,
			SyncInterval: duration{5 * time.Minute},
			SyncPageSize: 100,
			SyncMaxPages: 20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "marketstream",
			User:            "postgres",
			SSLMode:         "disable",
			PoolMaxConns:    10,
			PoolMinConns:    2,
			RunMigrations:   true,
			RefreshInterval: duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "marketstream:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketstream",
			ForcePathStyle: true,
		},
		Search: SearchConfig{
			OnDemand:        true,
			OnDemandTimeout: duration{5 * time.Second},
			DefaultLimit:    50,
			MaxLimit:        500,
			FacetTagLimit:   20,
		},
		WS: WSConfig{
			SendBuffer:     256,
			WriteWait:      duration{10 * time.Second},
			PongWait:       duration{60 * time.Second},
			MaxMessageSize: 4096,
			EventsChannel:  "market_updates",
		},
		Poller: PollerConfig{
			Enabled:      true,
			Interval:     duration{5 * time.Second},
			FetchTimeout: duration{5 * time.Second},
			Concurrency:  4,
			HistoryLimit: 500,
		},
		Snapshot: SnapshotConfig{
			Interval: duration{15 * time.Minute},
			Prefix:   "catalog/",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"*"},
			RateWindow:  duration{time.Minute},
		},
		Mode:     ModeFull,
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeAPI:    true,
	ModeIngest: true,
	ModeFull:   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ServesAPI reports whether the mode runs the HTTP and socket surface.
func (c *Config) ServesAPI() bool {
	m := strings.ToLower(c.Mode)
	return m == ModeAPI || m == ModeFull
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: api, ingest, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.RSAPrivateKeyPath != "" && c.Kalshi.APIKeyID == "" {
		errs = append(errs, "kalshi: api_key_id is required when rsa_private_key_path is set")
	}

	// Polymarket
	if c.Polymarket.GammaURL == "" {
		errs = append(errs, "polymarket: gamma_url must not be empty")
	}
	if c.Polymarket.ClobURL == "" {
		errs = append(errs, "polymarket: clob_url must not be empty")
	}
	if c.Polymarket.SyncPageSize < 1 {
		errs = append(errs, "polymarket: sync_page_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Postgres.RefreshInterval.Duration < 0 {
			errs = append(errs, "postgres: refresh_interval must not be negative")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Snapshots need a bucket.
	if c.Snapshot.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when snapshots are enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when snapshots are enabled")
		}
	}

	// Search
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, "search: default_limit must be >= 1")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, "search: max_limit must not be below default_limit")
	}

	// WS
	if c.WS.SendBuffer < 1 {
		errs = append(errs, "ws: send_buffer must be >= 1")
	}
	if c.WS.EventsChannel == "" {
		errs = append(errs, "ws: events_channel must not be empty")
	}

	// Poller
	if c.Poller.Enabled && c.Poller.Interval.Duration <= 0 {
		errs = append(errs, "poller: interval must be > 0 when enabled")
	}

	// Server
	if c.ServesAPI() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
