package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Search.OnDemandTimeout.Duration != 5*time.Second {
		t.Errorf("ondemand_timeout = %v, want 5s", cfg.Search.OnDemandTimeout.Duration)
	}
	if cfg.WS.SendBuffer != 256 || cfg.WS.EventsChannel != "market_updates" {
		t.Errorf("ws defaults = %+v", cfg.WS)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "api"

[search]
ondemand_timeout = "2s"
max_limit = 200

[ws]
send_buffer = 32

[server]
port = 9090
cors_origins = ["https://dash.example"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != ModeAPI {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Search.OnDemandTimeout.Duration != 2*time.Second || cfg.Search.MaxLimit != 200 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Search.DefaultLimit != 50 {
		t.Errorf("default_limit = %d, want untouched default 50", cfg.Search.DefaultLimit)
	}
	if cfg.WS.SendBuffer != 32 || cfg.WS.PongWait.Duration != 60*time.Second {
		t.Errorf("ws = %+v", cfg.WS)
	}
	if cfg.Server.Port != 9090 || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeFull || cfg.Server.Port != 8000 {
		t.Errorf("cfg = mode %q port %d", cfg.Mode, cfg.Server.Port)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "mode = \n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSTREAM_MODE", "ingest")
	t.Setenv("MARKETSTREAM_REDIS_ENABLED", "true")
	t.Setenv("MARKETSTREAM_REDIS_ADDR", "cache:6380")
	t.Setenv("MARKETSTREAM_SEARCH_ONDEMAND_TIMEOUT", "750ms")
	t.Setenv("MARKETSTREAM_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MARKETSTREAM_WS_MAX_MESSAGE_SIZE", "8192")
	t.Setenv("MARKETSTREAM_POLLER_INTERVAL", "not-a-duration")
	t.Setenv("MARKETSTREAM_POSTGRES_REFRESH_INTERVAL", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != ModeIngest {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6380" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Search.OnDemandTimeout.Duration != 750*time.Millisecond {
		t.Errorf("ondemand_timeout = %v", cfg.Search.OnDemandTimeout.Duration)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("cors_origins = %q", got)
	}
	if cfg.WS.MaxMessageSize != 8192 {
		t.Errorf("max_message_size = %d", cfg.WS.MaxMessageSize)
	}
	if cfg.Poller.Interval.Duration != 5*time.Second {
		t.Errorf("invalid override changed interval to %v", cfg.Poller.Interval.Duration)
	}
	if cfg.Postgres.RefreshInterval.Duration != 30*time.Second {
		t.Errorf("refresh_interval = %v", cfg.Postgres.RefreshInterval.Duration)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "trade" }, `unknown mode "trade"`},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"kalshi key without id", func(c *Config) { c.Kalshi.RSAPrivateKeyPath = "/k.pem" }, "kalshi: api_key_id"},
		{"postgres without host", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.Host = ""
		}, "postgres: host"},
		{"negative refresh interval", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.RefreshInterval.Duration = -time.Second
		}, "postgres: refresh_interval"},
		{"snapshots without bucket", func(c *Config) {
			c.Snapshot.Enabled = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
		{"limits inverted", func(c *Config) { c.Search.MaxLimit = 10 }, "search: max_limit"},
		{"rate limit without redis", func(c *Config) { c.Server.RateLimit = 100 }, "requires redis.enabled"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server: port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	t.Run("ingest ignores server port", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = ModeIngest
		cfg.Server.Port = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "x"
		cfg.LogLevel = "y"
		err := cfg.Validate()
		if err == nil || strings.Count(err.Error(), "\n  - ") != 2 {
			t.Errorf("error = %v, want two entries", err)
		}
	})
}

func TestModeHelpers(t *testing.T) {
	tests := []struct {
		mode string
		api  bool
	}{
		{ModeAPI, true},
		{ModeIngest, false},
		{"FULL", true},
	}
	for _, tt := range tests {
		cfg := Config{Mode: tt.mode}
		if cfg.ServesAPI() != tt.api {
			t.Errorf("%s: ServesAPI = %v", tt.mode, cfg.ServesAPI())
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.S3.SecretKey = "secret"
	cfg.Kalshi.APIKeyID = "key-id"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != "***" || out.S3.SecretKey != "***" || out.Kalshi.APIKeyID != "***" {
		t.Errorf("secrets not redacted: %+v %+v %+v", out.Postgres, out.S3, out.Kalshi)
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret became %q", out.Redis.Password)
	}
	if cfg.Postgres.Password != "pw" {
		t.Error("original config was modified")
	}

	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Error("CORS origins share backing array with original")
	}
}
