package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/memorymatch/internal/api/apierr"
	"github.com/mcoot/memorymatch/internal/api/response"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/session"
)

// PresenceHandler exposes who is online and which matches are running
type PresenceHandler struct {
	sessions *session.Registry
	rooms    *game.Registry
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(sessions *session.Registry, rooms *game.Registry) *PresenceHandler {
	return &PresenceHandler{
		sessions: sessions,
		rooms:    rooms,
	}
}

// OnlinePlayers handles GET /api/v1/players/online
func (h *PresenceHandler) OnlinePlayers(w http.ResponseWriter, r *http.Request) {
	players := h.sessions.Players()
	response.JSON(w, http.StatusOK, response.OnlinePlayers{
		Count:   len(players),
		Players: players,
	})
}

// Rooms handles GET /api/v1/rooms
func (h *PresenceHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	response.JSON(w, http.StatusOK, response.Rooms{
		Count: len(rooms),
		Rooms: rooms,
	})
}

// Room handles GET /api/v1/rooms/{id}
func (h *PresenceHandler) Room(w http.ResponseWriter, r *http.Request) {
	room, ok := h.rooms.Get(mux.Vars(r)["id"])
	if !ok {
		apierr.WriteError(w, model.ErrRoomNotFound)
		return
	}

	response.JSON(w, http.StatusOK, room.Snapshot())
}
