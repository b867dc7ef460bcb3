package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
)

func newTestOutput(format string) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewOutput(format, &out, &errOut), &out, &errOut
}

func TestPrintLeaderboardTable(t *testing.T) {
	o, out, _ := newTestOutput("text")

	o.Print([]model.LeaderboardEntry{
		{Username: "alice", TotalScore: 120, Wins: 3, Losses: 1, TotalGames: 4, WinRate: 75},
		{Username: "bob", TotalScore: 40, Wins: 1, Losses: 3, TotalGames: 4, WinRate: 25},
	})

	s := out.String()
	assert.Contains(t, s, "Player")
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "75.00")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("alice")), bytes.Index(out.Bytes(), []byte("bob")))
}

func TestPrintEmptyTables(t *testing.T) {
	o, out, _ := newTestOutput("text")

	o.Print([]model.LeaderboardEntry{})
	o.Print([]model.MatchHistoryEntry{})

	assert.Contains(t, out.String(), "No ranked players yet")
	assert.Contains(t, out.String(), "No matches played")
}

func TestPrintHistoryTable(t *testing.T) {
	o, out, _ := newTestOutput("text")

	o.Print([]model.MatchHistoryEntry{{
		Opponent:      "bob",
		Result:        "WIN",
		Difficulty:    model.DifficultyHard,
		MyScore:       90,
		OpponentScore: 60,
		Duration:      125,
		CreatedAt:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}})

	s := out.String()
	assert.Contains(t, s, "bob")
	assert.Contains(t, s, "90-60")
	assert.Contains(t, s, "2m5s")
	assert.Contains(t, s, "HARD")
}

func TestPrintPlayersAndRooms(t *testing.T) {
	o, out, _ := newTestOutput("text")

	o.Print(OnlinePlayers{Count: 2, Players: []protocol.PlayerInfo{
		{Username: "alice", InGame: true},
		{Username: "carol"},
	}})
	o.Print(Rooms{Count: 1, Rooms: []game.Snapshot{{
		ID:               "r1",
		Difficulty:       model.DifficultyEasy,
		Player1:          "alice",
		Player2:          "bob",
		Player1Score:     20,
		RemainingSeconds: 90,
	}}})

	s := out.String()
	assert.Contains(t, s, "Online: 2")
	assert.Contains(t, s, "in game")
	assert.Contains(t, s, "lobby")
	assert.Contains(t, s, "Active rooms: 1")
	assert.Contains(t, s, "alice vs bob")
	assert.Contains(t, s, "1m30s")
}

func TestPrintHealthText(t *testing.T) {
	o, out, _ := newTestOutput("text")

	o.Print(Health{Status: "ok", Storage: "ok", Online: 3, Rooms: 1})

	assert.Equal(t, "Status: ok\nStorage: ok\nOnline: 3\nRooms: 1\n", out.String())
}

func TestPrintJSON(t *testing.T) {
	o, out, _ := newTestOutput("json")

	o.Print(Health{Status: "ok", Storage: "ok", Online: 1})

	assert.JSONEq(t, `{"status":"ok","storage":"ok","online":1,"rooms":0}`, out.String())
}

func TestPrintErrorAndMessage(t *testing.T) {
	o, out, errOut := newTestOutput("text")
	o.PrintError(errors.New("boom"))
	o.PrintMessage("done")
	assert.Equal(t, "Error: boom\n", errOut.String())
	assert.Equal(t, "done\n", out.String())

	o, out, errOut = newTestOutput("json")
	o.PrintError(errors.New("boom"))
	o.PrintMessage("done")
	assert.JSONEq(t, `{"error":{"message":"boom"}}`, errOut.String())
	assert.JSONEq(t, `{"message":"done"}`, out.String())
}
