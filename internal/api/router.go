package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/memorymatch/internal/api/handler"
	"github.com/mcoot/memorymatch/internal/api/middleware"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/services/stats"
	"github.com/mcoot/memorymatch/internal/session"
	"github.com/mcoot/memorymatch/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Storage  storage.Storage
	Stats    *stats.Service
	Sessions *session.Registry
	Rooms    *game.Registry

	// WebSocket serves /ws when set
	WebSocket http.Handler
}

// NewRouter creates the admin router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	logger := cfg.Logger.With(slog.String("component", "http"))

	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Sessions, cfg.Rooms, logger)
	statsHandler := handler.NewStatsHandler(cfg.Stats, cfg.Storage)
	presenceHandler := handler.NewPresenceHandler(cfg.Sessions, cfg.Rooms)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(logger))
	api.Use(middleware.Logging(logger))

	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", statsHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/players/online", presenceHandler.OnlinePlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{username}/history", statsHandler.History).Methods(http.MethodGet)
	api.HandleFunc("/rooms", presenceHandler.Rooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", presenceHandler.Room).Methods(http.MethodGet)

	// The upgrade hijacks the connection, so /ws stays outside the logging wrapper
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	return r
}
