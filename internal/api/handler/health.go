package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/memorymatch/internal/api/apierr"
	"github.com/mcoot/memorymatch/internal/api/response"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/session"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by every storage backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and storage health
type HealthHandler struct {
	storage  Pinger
	sessions *session.Registry
	rooms    *game.Registry
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(storage Pinger, sessions *session.Registry, rooms *game.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage:  storage,
		sessions: sessions,
		rooms:    rooms,
		logger:   logger,
	}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("storage ping failed", slog.Any("error", err))
		apierr.WriteError(w, apierr.NewUnavailableError("storage unavailable"))
		return
	}

	response.JSON(w, http.StatusOK, response.Health{
		Status:  "ok",
		Storage: "ok",
		Online:  h.sessions.Count(),
		Rooms:   h.rooms.Count(),
	})
}
