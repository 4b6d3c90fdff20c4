package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COMMITD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COMMITD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// --- Postgres ---
	setStr(&cfg.Postgres.DSN, "COMMITD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COMMITD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COMMITD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COMMITD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COMMITD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COMMITD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COMMITD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COMMITD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COMMITD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COMMITD_POSTGRES_RUN_MIGRATIONS")

	// --- Redis ---
	setStr(&cfg.Redis.Addr, "COMMITD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COMMITD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COMMITD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COMMITD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COMMITD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COMMITD_REDIS_TLS_ENABLED")

	// --- S3 ---
	setStr(&cfg.S3.Endpoint, "COMMITD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COMMITD_S3_REGION")
	setStr(&cfg.S3.Bucket, "COMMITD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COMMITD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COMMITD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COMMITD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COMMITD_S3_FORCE_PATH_STYLE")

	// --- Custody ---
	setStr(&cfg.Custody.BaseURL, "COMMITD_CUSTODY_BASE_URL")
	setStr(&cfg.Custody.APIKey, "COMMITD_CUSTODY_API_KEY")
	setStr(&cfg.Custody.APISecret, "COMMITD_CUSTODY_API_SECRET")
	setStr(&cfg.Custody.Account, "COMMITD_CUSTODY_ACCOUNT")

	// --- Tokenizer ---
	setBool(&cfg.Tokenizer.Enabled, "COMMITD_TOKENIZER_ENABLED")
	setStr(&cfg.Tokenizer.BaseURL, "COMMITD_TOKENIZER_BASE_URL")
	setStr(&cfg.Tokenizer.APIKey, "COMMITD_TOKENIZER_API_KEY")

	// --- Auth ---
	setDuration(&cfg.Auth.MaxSkew, "COMMITD_AUTH_MAX_SKEW")

	// --- Server ---
	setBool(&cfg.Server.Enabled, "COMMITD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COMMITD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COMMITD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COMMITD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "COMMITD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "COMMITD_SERVER_RATE_WINDOW")

	// --- Worker ---
	setBool(&cfg.Worker.Enabled, "COMMITD_WORKER_ENABLED")
	setDuration(&cfg.Worker.SettleInterval, "COMMITD_WORKER_SETTLE_INTERVAL")
	setDuration(&cfg.Worker.ArchiveInterval, "COMMITD_WORKER_ARCHIVE_INTERVAL")
	setInt(&cfg.Worker.ArchiveRetentionDays, "COMMITD_WORKER_ARCHIVE_RETENTION_DAYS")

	// --- Notify ---
	setStr(&cfg.Notify.TelegramToken, "COMMITD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COMMITD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COMMITD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COMMITD_NOTIFY_EVENTS")

	// --- Top-level ---
	setStr(&cfg.Mode, "COMMITD_MODE")
	setStr(&cfg.LogLevel, "COMMITD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
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
