package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/memorymatch/internal/api/apierr"
	"github.com/mcoot/memorymatch/internal/api/response"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/services/auth"
	"github.com/mcoot/memorymatch/internal/services/stats"
)

// AccountLookup resolves a username to its account
type AccountLookup interface {
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

// StatsHandler serves the leaderboard and match history
type StatsHandler struct {
	stats    *stats.Service
	accounts AccountLookup
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *stats.Service, accounts AccountLookup) *StatsHandler {
	return &StatsHandler{
		stats:    stats,
		accounts: accounts,
	}
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.stats.Leaderboard(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Leaderboard{Players: entries})
}

// History handles GET /api/v1/players/{username}/history
func (h *StatsHandler) History(w http.ResponseWriter, r *http.Request) {
	username := auth.NormalizeUsername(mux.Vars(r)["username"])
	if username == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("username is required"))
		return
	}

	account, err := h.accounts.GetAccountByUsername(r.Context(), username)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	history, err := h.stats.MatchHistory(r.Context(), account.ID)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MatchHistory{
		Username: account.Username,
		Matches:  history,
	})
}
