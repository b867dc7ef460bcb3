package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/mcoot/memorymatch/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
		return
	}

	switch v := data.(type) {
	case []model.LeaderboardEntry:
		o.printLeaderboard(v)
	case []model.MatchHistoryEntry:
		o.printHistory(v)
	case OnlinePlayers:
		o.printPlayers(v)
	case Rooms:
		o.printRooms(v)
	case Health:
		fmt.Fprintf(o.out, "Status: %s\nStorage: %s\nOnline: %d\nRooms: %d\n", v.Status, v.Storage, v.Online, v.Rooms)
	default:
		o.printJSON(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		fmt.Fprintln(o.errOut, string(data))
		return
	}
	fmt.Fprintf(o.errOut, "Error: %s\n", err)
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.out, string(data))
		return
	}
	fmt.Fprintln(o.out, msg)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printTable(data pterm.TableData) {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		o.printJSON(data)
		return
	}
	fmt.Fprintln(o.out, table)
}

func (o *Output) printLeaderboard(entries []model.LeaderboardEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(o.out, "No ranked players yet")
		return
	}
	data := pterm.TableData{{"#", "Player", "Score", "Wins", "Losses", "Games", "Win %"}}
	for i, e := range entries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			e.Username,
			strconv.Itoa(e.TotalScore),
			strconv.Itoa(e.Wins),
			strconv.Itoa(e.Losses),
			strconv.Itoa(e.TotalGames),
			strconv.FormatFloat(e.WinRate, 'f', 2, 64),
		})
	}
	o.printTable(data)
}

func (o *Output) printHistory(history []model.MatchHistoryEntry) {
	if len(history) == 0 {
		fmt.Fprintln(o.out, "No matches played")
		return
	}
	data := pterm.TableData{{"When", "Opponent", "Result", "Difficulty", "Score", "Duration"}}
	for _, h := range history {
		data = append(data, []string{
			h.CreatedAt.Local().Format(time.DateTime),
			h.Opponent,
			h.Result,
			string(h.Difficulty),
			fmt.Sprintf("%d-%d", h.MyScore, h.OpponentScore),
			(time.Duration(h.Duration) * time.Second).String(),
		})
	}
	o.printTable(data)
}

func (o *Output) printPlayers(p OnlinePlayers) {
	fmt.Fprintf(o.out, "Online: %d\n", p.Count)
	if len(p.Players) == 0 {
		return
	}
	data := pterm.TableData{{"Player", "Status"}}
	for _, player := range p.Players {
		status := "lobby"
		if player.InGame {
			status = "in game"
		}
		data = append(data, []string{player.Username, status})
	}
	o.printTable(data)
}

func (o *Output) printRooms(r Rooms) {
	fmt.Fprintf(o.out, "Active rooms: %d\n", r.Count)
	if len(r.Rooms) == 0 {
		return
	}
	data := pterm.TableData{{"Room", "Difficulty", "Players", "Score", "Remaining"}}
	for _, room := range r.Rooms {
		data = append(data, []string{
			room.ID,
			string(room.Difficulty),
			room.Player1 + " vs " + room.Player2,
			fmt.Sprintf("%d-%d", room.Player1Score, room.Player2Score),
			(time.Duration(room.RemainingSeconds) * time.Second).String(),
		})
	}
	o.printTable(data)
}
