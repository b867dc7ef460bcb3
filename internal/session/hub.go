package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/memorymatch/internal/dependencies/random"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/services/auth"
	"github.com/mcoot/memorymatch/internal/services/stats"
)

// Config holds per-session settings
type Config struct {
	// SendBuffer is the capacity of each session's outbound queue
	SendBuffer int `yaml:"send_buffer"`
	// WriteTimeout bounds a single outbound write
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
	}
}

// Hub holds what every session shares: services, registries and the message router
type Hub struct {
	cfg      Config
	auth     *auth.Service
	stats    *stats.Service
	rooms    *game.Registry
	sessions *Registry
	random   random.Random
	logger   *slog.Logger
	router   map[protocol.MessageType]route
}

// NewHub creates a Hub
func NewHub(
	cfg Config,
	auth *auth.Service,
	stats *stats.Service,
	rooms *game.Registry,
	sessions *Registry,
	random random.Random,
	logger *slog.Logger,
) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	h := &Hub{
		cfg:      cfg,
		auth:     auth,
		stats:    stats,
		rooms:    rooms,
		sessions: sessions,
		random:   random,
		logger:   logger.With(slog.String("component", "session")),
	}
	h.router = h.routes()
	return h
}

// Config returns the session configuration
func (h *Hub) Config() Config {
	return h.cfg
}

// Sessions returns the registry of online sessions
func (h *Hub) Sessions() *Registry {
	return h.sessions
}

// Serve runs a session on conn until it disconnects
func (h *Hub) Serve(ctx context.Context, conn Conn) {
	s := newSession(h.random.String(8, random.Alphanumeric), conn, h)
	s.serve(ctx)
}
