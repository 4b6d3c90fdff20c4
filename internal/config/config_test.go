package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"
log_level = "debug"

[server]
port = 9000

[auth]
max_skew = "2m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Auth.MaxSkew.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "commitd-archive", cfg.S3.Bucket)
	assert.Equal(t, time.Minute, cfg.Worker.SettleInterval.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"

[postgres]
password = "from-file"
`)

	t.Setenv("COMMITD_POSTGRES_PASSWORD", "from-env")
	t.Setenv("COMMITD_SERVER_PORT", "8081")
	t.Setenv("COMMITD_WORKER_SETTLE_INTERVAL", "30s")
	t.Setenv("COMMITD_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Postgres.Password)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Worker.SettleInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Server.Port = -1
	cfg.Custody.APIKey = "key-without-secret"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "api_key and api_secret")
}

func TestValidateDevModeSkipsExternalServices(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "dev"
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	cfg.Custody = CustodyConfig{}

	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.Custody.APIKey = "ck"
	cfg.Custody.APISecret = "cs"
	cfg.Server.APIKey = "sk"
	cfg.Notify.TelegramToken = "tt"

	out := RedactedConfig(&cfg)

	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.Custody.APIKey)
	assert.Equal(t, "***", out.Custody.APISecret)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)

	// The original is untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)

	// Empty secrets stay empty rather than pretending to exist.
	assert.Empty(t, out.S3.SecretKey)
}
