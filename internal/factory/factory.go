package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/mcoot/memorymatch/internal/api"
	"github.com/mcoot/memorymatch/internal/config"
	"github.com/mcoot/memorymatch/internal/dependencies/clock"
	"github.com/mcoot/memorymatch/internal/dependencies/random"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/server"
	"github.com/mcoot/memorymatch/internal/services/auth"
	"github.com/mcoot/memorymatch/internal/services/stats"
	"github.com/mcoot/memorymatch/internal/session"
	"github.com/mcoot/memorymatch/internal/storage"
	"github.com/mcoot/memorymatch/internal/storage/memory"
	"github.com/mcoot/memorymatch/internal/storage/postgres"
	redisstorage "github.com/mcoot/memorymatch/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	Config config.Config

	// Storage and outbound events
	Storage   storage.Storage
	Publisher events.Publisher

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService  *auth.Service
	StatsService *stats.Service

	// Live state
	Sessions *session.Registry
	Rooms    *game.Registry
	Hub      *session.Hub

	// Transports
	WebSocket *server.WebSocketHandler
	Router    http.Handler

	logger *slog.Logger

	mu       sync.Mutex
	listener *server.Listener
	http     *api.Server
	httpAddr net.Addr
	errCh    chan error

	closeOnce sync.Once
	closeErr  error
}

// New creates an application from cfg, connecting to the configured backends
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return newWithDependencies(cfg, store, publisher, clock.New(), random.New(), logger), nil
}

func newStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Type {
	case "", config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeRedis:
		store, err := redisstorage.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		return store, nil
	case config.StorageTypePostgres:
		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(cfg.Postgres.URL, logger); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		store, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid storage type %q: must be memory, redis or postgres", cfg.Type)
	}
}

func newPublisher(cfg events.Config, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.Enabled() {
		return events.Nop{}, nil
	}
	publisher, err := events.NewNATSPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("nats publisher: %w", err)
	}
	return publisher, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg config.Config,
	store storage.Storage,
	publisher events.Publisher,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *App {
	authCfg := cfg.Auth
	if authCfg.BcryptCost == 0 {
		authCfg = auth.DefaultConfig()
	}
	statsCfg := cfg.Stats
	if statsCfg.WriteTimeout == 0 {
		statsCfg = stats.DefaultConfig()
	}

	authService := auth.New(store, clk, authCfg, logger)
	statsService := stats.New(store, publisher, statsCfg, logger)

	sessions := session.NewRegistry(logger)
	rooms := game.NewRegistry(clk, rnd, statsService, logger,
		game.WithOnEnded(func(*game.Room) { sessions.BroadcastPlayerList() }))
	hub := session.NewHub(cfg.Server.Session, authService, statsService, rooms, sessions, rnd, logger)
	ws := server.NewWebSocketHandler(hub, logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Storage:   store,
		Stats:     statsService,
		Sessions:  sessions,
		Rooms:     rooms,
		WebSocket: ws,
	})

	return &App{
		Config:       cfg,
		Storage:      store,
		Publisher:    publisher,
		Clock:        clk,
		Random:       rnd,
		AuthService:  authService,
		StatsService: statsService,
		Sessions:     sessions,
		Rooms:        rooms,
		Hub:          hub,
		WebSocket:    ws,
		Router:       router,
		logger:       logger,
		errCh:        make(chan error, 2),
	}
}

// Start binds the TCP and HTTP listeners and serves in the background until
// ctx is cancelled or Shutdown is called
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return errors.New("app already started")
	}

	listener, err := server.Listen(a.Config.Server.TCPAddr, a.Hub, a.logger)
	if err != nil {
		return err
	}
	httpLn, err := net.Listen("tcp", a.Config.Server.HTTP.Addr)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen on %s: %w", a.Config.Server.HTTP.Addr, err)
	}

	a.listener = listener
	a.http = api.NewServer(a.Router, a.Config.Server.HTTP, a.logger)
	a.httpAddr = httpLn.Addr()

	go func() { a.errCh <- listener.Serve(ctx) }()
	go func() { a.errCh <- a.http.Serve(httpLn) }()

	a.logger.Info("server started",
		slog.String("tcp_addr", listener.Addr().String()),
		slog.String("http_addr", a.httpAddr.String()),
		slog.String("storage", a.Config.Storage.Type))
	return nil
}

// Run starts the app and blocks until ctx is cancelled or a listener fails,
// then shuts everything down
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-a.errCh:
		if runErr != nil {
			a.logger.Error("listener failed", slog.Any("error", runErr))
		}
	}

	if err := a.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// TCPAddr returns the bound line-protocol address, or nil before Start
func (a *App) TCPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// HTTPAddr returns the bound admin address, or nil before Start
func (a *App) HTTPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.httpAddr
}

// Shutdown stops accepting, disconnects every session (each live match ends
// as a quit), stops HTTP and releases the store and publisher
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	listener, httpServer := a.listener, a.http
	a.mu.Unlock()

	var errs []error
	if listener != nil {
		errs = append(errs, listener.Close())
	}
	errs = append(errs, a.WebSocket.Close())
	if httpServer != nil {
		errs = append(errs, httpServer.Shutdown(ctx))
	}
	errs = append(errs, a.Close())

	a.logger.Info("server stopped")
	return errors.Join(errs...)
}

// Close releases the publisher and the store. Later calls return the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = errors.Join(a.Publisher.Close(), a.Storage.Close())
	})
	return a.closeErr
}
