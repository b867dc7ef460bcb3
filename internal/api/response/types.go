package response

import (
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
)

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Online  int    `json:"online"`
	Rooms   int    `json:"rooms"`
}

// Leaderboard lists the top players
type Leaderboard struct {
	Players []model.LeaderboardEntry `json:"players"`
}

// MatchHistory lists one player's recent matches, newest first
type MatchHistory struct {
	Username string                    `json:"username"`
	Matches  []model.MatchHistoryEntry `json:"matches"`
}

// OnlinePlayers lists the authenticated sessions
type OnlinePlayers struct {
	Count   int                   `json:"count"`
	Players []protocol.PlayerInfo `json:"players"`
}

// Rooms lists the matches in progress
type Rooms struct {
	Count int             `json:"count"`
	Rooms []game.Snapshot `json:"rooms"`
}
