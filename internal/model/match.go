package model

import (
	"cmp"
	"math"
	"time"
)

// MatchRecord is a finished match as written to the store
type MatchRecord struct {
	ID           int64
	Player1ID    AccountID
	Player2ID    AccountID
	Player1Name  string
	Player2Name  string
	WinnerID     *AccountID // nil on a draw
	Difficulty   Difficulty
	Player1Score int
	Player2Score int
	Duration     int // seconds
	CreatedAt    time.Time
}

// ResultFor returns the outcome of the match for the given account
func (m *MatchRecord) ResultFor(id AccountID) Outcome {
	switch {
	case m.WinnerID == nil:
		return OutcomeDraw
	case *m.WinnerID == id:
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}

// HistoryFor projects the record onto the given participant
func (m *MatchRecord) HistoryFor(id AccountID) MatchHistoryEntry {
	entry := MatchHistoryEntry{
		Result:     m.ResultFor(id).String(),
		Difficulty: m.Difficulty,
		Duration:   m.Duration,
		CreatedAt:  m.CreatedAt,
	}
	if m.Player1ID == id {
		entry.Opponent = m.Player2Name
		entry.MyScore = m.Player1Score
		entry.OpponentScore = m.Player2Score
	} else {
		entry.Opponent = m.Player1Name
		entry.MyScore = m.Player2Score
		entry.OpponentScore = m.Player1Score
	}
	return entry
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	Username   string  `json:"username"`
	TotalScore int     `json:"total_score"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	TotalGames int     `json:"total_games"`
	WinRate    float64 `json:"win_rate"`
}

// NewLeaderboardEntry derives the aggregate columns from an account
func NewLeaderboardEntry(a *Account) LeaderboardEntry {
	games := a.Wins + a.Losses
	return LeaderboardEntry{
		Username:   a.Username,
		TotalScore: a.TotalScore,
		Wins:       a.Wins,
		Losses:     a.Losses,
		TotalGames: games,
		WinRate:    WinRate(a.Wins, games),
	}
}

// WinRate is wins as a percentage of games, rounded to two decimals
func WinRate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return math.Round(float64(wins)*100*100/float64(games)) / 100
}

// MatchHistoryEntry is one row of a player's match history
type MatchHistoryEntry struct {
	Opponent      string     `json:"opponent"`
	Result        string     `json:"result"`
	Difficulty    Difficulty `json:"difficulty"`
	MyScore       int        `json:"my_score"`
	OpponentScore int        `json:"opponent_score"`
	Duration      int        `json:"duration"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CompareLeaderboard orders entries by total score, then wins, descending,
// with username as the final ascending tie-break
func CompareLeaderboard(a, b LeaderboardEntry) int {
	if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
		return c
	}
	return cmp.Compare(a.Username, b.Username)
}
