package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvTCPAddr, EnvHTTPAddr, EnvStorageType, EnvRedisURL,
		EnvDatabaseURL, EnvNATSURL, EnvLogLevel, EnvLogFormat,
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":5555", cfg.Server.TCPAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, StorageTypeMemory, cfg.Storage.Type)
	assert.False(t, cfg.Events.Enabled())
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  tcp_addr: ":7000"
  session:
    send_buffer: 32
    write_timeout: 3s
storage:
  type: redis
  redis:
    url: redis://cache:6379
    history_length: 50
events:
  nats_url: nats://bus:4222
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.TCPAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 32, cfg.Server.Session.SendBuffer)
	assert.Equal(t, 3*time.Second, cfg.Server.Session.WriteTimeout)
	assert.Equal(t, StorageTypeRedis, cfg.Storage.Type)
	assert.Equal(t, "redis://cache:6379", cfg.Storage.Redis.URL)
	assert.Equal(t, 50, cfg.Storage.Redis.HistoryLength)
	assert.Equal(t, 10, cfg.Storage.Redis.PoolSize)
	assert.True(t, cfg.Events.Enabled())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server:\n  tcp_addr: \":7000\"\n")
	t.Setenv(EnvTCPAddr, ":9000")
	t.Setenv(EnvStorageType, StorageTypePostgres)
	t.Setenv(EnvDatabaseURL, "postgres://db/mm")
	t.Setenv(EnvNATSURL, "nats://bus:4222")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.TCPAddr)
	assert.Equal(t, StorageTypePostgres, cfg.Storage.Type)
	assert.Equal(t, "postgres://db/mm", cfg.Storage.Postgres.URL)
	assert.Equal(t, "nats://bus:4222", cfg.Events.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "storage:\n  type: sqlite\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing tcp addr", func(c *Config) { c.Server.TCPAddr = "" }},
		{"zero send buffer", func(c *Config) { c.Server.Session.SendBuffer = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "sqlite" }},
		{"redis without url", func(c *Config) {
			c.Storage.Type = StorageTypeRedis
			c.Storage.Redis.URL = ""
		}},
		{"postgres without url", func(c *Config) {
			c.Storage.Type = StorageTypePostgres
			c.Storage.Postgres.URL = ""
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(LogConfig{Level: "warn", Format: LogFormatJSON}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = NewLogger(LogConfig{Level: "debug", Format: LogFormatText}, &buf)
	require.NoError(t, err)
	logger.Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")

	_, err = NewLogger(LogConfig{Level: "nope"}, &buf)
	assert.Error(t, err)
}
