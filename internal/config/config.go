// Package config defines the top-level configuration for the commitment
// ledger daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COMMITD_* environment
// variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Custody   CustodyConfig   `toml:"custody"`
	Tokenizer TokenizerConfig `toml:"tokenizer"`
	Auth      AuthConfig      `toml:"auth"`
	Server    ServerConfig    `toml:"server"`
	Worker    WorkerConfig    `toml:"worker"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN wins over the
// individual fields when set.
type PostgresConfig struct {
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
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the archive bucket parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CustodyConfig holds the custody service endpoint and credentials. Account
// is the ledger's own custody address that receives locked funds.
type CustodyConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Account   string `toml:"account"`
}

// TokenizerConfig holds the ownership-token service parameters. Minting is
// skipped entirely when Enabled is false.
type TokenizerConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// AuthConfig holds proof verification parameters.
type AuthConfig struct {
	// MaxSkew bounds the drift between a proof timestamp and server time.
	MaxSkew duration `toml:"max_skew"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the HTTP API; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimit is the per-client request budget inside RateWindow.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// WorkerConfig holds the background job parameters: the settlement sweeper
// and the cold-data archiver.
type WorkerConfig struct {
	Enabled              bool     `toml:"enabled"`
	SettleInterval       duration `toml:"settle_interval"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
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
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "commitments",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "commitd-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Custody: CustodyConfig{
			BaseURL: "http://localhost:8443",
		},
		Tokenizer: TokenizerConfig{
			Enabled: false,
			BaseURL: "http://localhost:8444",
		},
		Auth: AuthConfig{
			MaxSkew: duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   100,
			RateWindow:  duration{time.Minute},
		},
		Worker: WorkerConfig{
			Enabled:              true,
			SettleInterval:       duration{time.Minute},
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"commitment.violated", "commitment.settled", "commitment.early_exit"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"server": true,
	"worker": true,
	"dev":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, worker, dev)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Dev mode runs on in-memory stores: the backing-store checks below
	// only apply to the other modes.
	isDev := strings.ToLower(c.Mode) == "dev"

	if !isDev {
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
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}

		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}

		if c.Custody.BaseURL == "" {
			errs = append(errs, "custody: base_url must not be empty")
		}
		if c.Custody.Account == "" {
			errs = append(errs, "custody: account must not be empty")
		}

		// Custody credentials must be set together, or not at all.
		ck := c.Custody.APIKey != ""
		cs := c.Custody.APISecret != ""
		if ck != cs {
			errs = append(errs, "custody: api_key and api_secret must be set together")
		}
	}

	if c.Tokenizer.Enabled && c.Tokenizer.BaseURL == "" {
		errs = append(errs, "tokenizer: base_url must not be empty when enabled")
	}

	if c.Auth.MaxSkew.Duration < 0 {
		errs = append(errs, "auth: max_skew must not be negative")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
	}

	if c.Worker.Enabled {
		if c.Worker.SettleInterval.Duration <= 0 {
			errs = append(errs, "worker: settle_interval must be > 0 when enabled")
		}
		if c.Worker.ArchiveRetentionDays < 0 {
			errs = append(errs, "worker: archive_retention_days must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
