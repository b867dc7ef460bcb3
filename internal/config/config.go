package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/memorymatch/internal/api"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/services/auth"
	"github.com/mcoot/memorymatch/internal/services/stats"
	"github.com/mcoot/memorymatch/internal/session"
	"github.com/mcoot/memorymatch/internal/storage/postgres"
	redisstorage "github.com/mcoot/memorymatch/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// Log format constants
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Environment variables that override file values
const (
	EnvConfigPath  = "MEMORYMATCH_CONFIG"
	EnvTCPAddr     = "MEMORYMATCH_TCP_ADDR"
	EnvHTTPAddr    = "MEMORYMATCH_HTTP_ADDR"
	EnvStorageType = "STORAGE_TYPE"
	EnvRedisURL    = "REDIS_URL"
	EnvDatabaseURL = "DATABASE_URL"
	EnvNATSURL     = "NATS_URL"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Events  events.Config `yaml:"events"`
	Auth    auth.Config   `yaml:"auth"`
	Stats   stats.Config  `yaml:"stats"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the listener settings
type ServerConfig struct {
	// TCPAddr is the line-protocol listen address
	TCPAddr string `yaml:"tcp_addr"`

	HTTP    api.ServerConfig `yaml:"http"`
	Session session.Config   `yaml:"session"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type     string              `yaml:"type"`
	Redis    redisstorage.Config `yaml:"redis"`
	Postgres postgres.Config     `yaml:"postgres"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Server: ServerConfig{
			TCPAddr: ":5555",
			HTTP:    api.DefaultServerConfig(),
			Session: session.DefaultConfig(),
		},
		Storage: StorageConfig{
			Type:     StorageTypeMemory,
			Redis:    redisstorage.DefaultConfig(),
			Postgres: postgres.DefaultConfig(),
		},
		Events: events.DefaultConfig(),
		Auth:   auth.DefaultConfig(),
		Stats:  stats.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvTCPAddr, &c.Server.TCPAddr},
		{EnvHTTPAddr, &c.Server.HTTP.Addr},
		{EnvStorageType, &c.Storage.Type},
		{EnvRedisURL, &c.Storage.Redis.URL},
		{EnvDatabaseURL, &c.Storage.Postgres.URL},
		{EnvNATSURL, &c.Events.URL},
		{EnvLogLevel, &c.Log.Level},
		{EnvLogFormat, &c.Log.Format},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate reports the first setting that cannot be used
func (c Config) Validate() error {
	if c.Server.TCPAddr == "" {
		return fmt.Errorf("%w: server.tcp_addr is required", ErrInvalidConfig)
	}
	if c.Server.Session.SendBuffer <= 0 {
		return fmt.Errorf("%w: server.session.send_buffer must be positive", ErrInvalidConfig)
	}

	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("%w: storage.redis.url is required for redis storage", ErrInvalidConfig)
		}
	case StorageTypePostgres:
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("%w: storage.postgres.url is required for postgres storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// NewLogger builds the process logger writing to w
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
