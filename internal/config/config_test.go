package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithSQLite(t *testing.T) {
	t.Setenv("ANTY_DATABASE_BACKEND", "SQLite")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Backend)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.BatchWaitTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Development())
}

func TestLoadUnprefixedAliases(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/anty")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/anty", cfg.Database.URL)
	assert.Equal(t, ":9090", cfg.ListenAddr)

	t.Setenv("ANTY_DATABASE_URL", "postgres://primary/anty")
	cfg, err = Load(New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/anty", cfg.Database.URL)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("ANTY_ENV", "production")
	t.Setenv("ANTY_WORKERS", "-1")
	t.Setenv("ANTY_LOG_FORMAT", "xml")

	cfg, err := Load(New())
	require.Error(t, err)
	msg := err.Error()
	assert.NotContains(t, msg, "database.url")
	assert.Contains(t, msg, "workers must not be negative")
	assert.Contains(t, msg, "log.format")
	assert.Contains(t, msg, "auth.secret is required")

	require.Error(t, cfg.Database.Validate())
	assert.Contains(t, cfg.Database.Validate().Error(), "database.url")
	assert.NoError(t, DatabaseConfig{Backend: "sqlite"}.Validate())
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
database:
  backend: sqlite
  url: /tmp/anty.db
policy:
  default: v1
auth:
  secret: 0123456789abcdef0123456789abcdef
log:
  format: json
`), 0o600))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "/tmp/anty.db", cfg.Database.URL)
	assert.Equal(t, "v1", cfg.Policy.Default)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "debug", Format: "json"}.Logger(&buf).Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
