package game

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/memorymatch/internal/dependencies/clock"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/services/stats"
)

const (
	// PointsPerPair is awarded for every matched pair
	PointsPerPair = 10
	// MinQuitAward is the least a player scores when the opponent forfeits
	MinQuitAward = 100
)

// Participant is a player seated in a room
type Participant interface {
	Username() string
	AccountID() model.AccountID
	// Send queues a message without blocking
	Send(msg any)
	// ReleaseRoom returns the participant to the lobby if it is still bound to room
	ReleaseRoom(room *Room)
}

// Recorder persists finished matches
type Recorder interface {
	RecordResult(ctx context.Context, result stats.MatchResult)
	RecordQuit(ctx context.Context, result stats.MatchResult, quitter model.AccountID)
}

// FlipResult describes one processed flip
type FlipResult struct {
	Card1          int
	Card2          int
	Value1         int
	Value2         int
	Matched        bool
	AlreadyFlipped bool
	Completed      bool
}

// Snapshot is a read-only view of a room
type Snapshot struct {
	ID               string           `json:"id"`
	Difficulty       model.Difficulty `json:"difficulty"`
	Player1          string           `json:"player1"`
	Player2          string           `json:"player2"`
	Player1Score     int              `json:"player1_score"`
	Player2Score     int              `json:"player2_score"`
	StartedAt        time.Time        `json:"started_at"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Ended            bool             `json:"ended"`
}

// Room is the authoritative state of one match.
// Both players race on the same shuffled deck with independent flipped state.
type Room struct {
	id         string
	difficulty model.Difficulty
	players    [2]Participant
	values     []int

	mu        sync.Mutex
	flipped   [2][]bool
	scores    [2]int
	pairs     [2]int
	startedAt time.Time
	timer     clock.Timer
	ended     atomic.Bool

	clock    clock.Clock
	recorder Recorder
	onClose  func(*Room)
	logger   *slog.Logger
}

func newRoom(id string, difficulty model.Difficulty, p1, p2 Participant, values []int, deps roomDeps) *Room {
	n := len(values)
	logger := deps.logger.With(
		slog.String("room_id", id),
		slog.String("player1", p1.Username()),
		slog.String("player2", p2.Username()))

	return &Room{
		id:         id,
		difficulty: difficulty,
		players:    [2]Participant{p1, p2},
		values:     values,
		flipped:    [2][]bool{make([]bool, n), make([]bool, n)},
		clock:      deps.clock,
		recorder:   deps.recorder,
		onClose:    deps.onClose,
		logger:     logger,
	}
}

type roomDeps struct {
	clock    clock.Clock
	recorder Recorder
	onClose  func(*Room)
	logger   *slog.Logger
}

// ID returns the room id
func (r *Room) ID() string {
	return r.id
}

// Difficulty returns the room difficulty
func (r *Room) Difficulty() model.Difficulty {
	return r.difficulty
}

// CardCount returns the number of cards on the board
func (r *Room) CardCount() int {
	return len(r.values)
}

// Players returns player1 and player2
func (r *Room) Players() (Participant, Participant) {
	return r.players[0], r.players[1]
}

// Opponent returns the other participant, or nil if p is not seated here
func (r *Room) Opponent(p Participant) Participant {
	switch r.seat(p) {
	case 0:
		return r.players[1]
	case 1:
		return r.players[0]
	default:
		return nil
	}
}

// Ended reports whether the room has finished
func (r *Room) Ended() bool {
	return r.ended.Load()
}

// Start sends GAME_START to both players and arms the deadline timer
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil || r.ended.Load() {
		return
	}

	r.startedAt = r.clock.Now()
	rows, cols := model.GridShape(len(r.values))
	limit := r.difficulty.TimeLimit()

	for seat, p := range r.players {
		values := make([]int, len(r.values))
		copy(values, r.values)
		p.Send(protocol.GameStart{
			Type:       protocol.TypeGameStart,
			RoomID:     r.id,
			Difficulty: r.difficulty,
			CardCount:  len(r.values),
			TimeLimit:  int(limit / time.Second),
			Opponent:   r.players[1-seat].Username(),
			CardValues: values,
			Rows:       rows,
			Cols:       cols,
		})
	}

	r.timer = r.clock.AfterFunc(limit, r.timeout)
	r.logger.Info("game started",
		slog.String("difficulty", string(r.difficulty)),
		slog.Int("card_count", len(r.values)),
		slog.Duration("time_limit", limit))
}

// FlipCard reveals cards i and j for p. Both indices must be distinct and on
// the board. Flipping a card p has already matched changes nothing.
func (r *Room) FlipCard(p Participant, i, j int) (FlipResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended.Load() {
		return FlipResult{}, model.ErrRoomEnded
	}
	seat := r.seat(p)
	if seat < 0 {
		return FlipResult{}, model.ErrNotParticipant
	}
	n := len(r.values)
	if i == j || i < 0 || j < 0 || i >= n || j >= n {
		return FlipResult{}, model.ErrInvalidFlip
	}

	flipped := r.flipped[seat]
	result := FlipResult{
		Card1:  i,
		Card2:  j,
		Value1: r.values[i],
		Value2: r.values[j],
	}

	if flipped[i] || flipped[j] {
		result.AlreadyFlipped = true
		p.Send(r.update(p, result))
		return result, nil
	}

	result.Matched = result.Value1 == result.Value2
	if !result.Matched {
		p.Send(r.update(p, result))
		return result, nil
	}

	flipped[i] = true
	flipped[j] = true
	r.scores[seat] += PointsPerPair
	r.pairs[seat]++

	p.Send(r.update(p, result))
	scores := protocol.NewScoreUpdate(
		r.players[0].Username(), r.scores[0],
		r.players[1].Username(), r.scores[1])
	r.players[0].Send(scores)
	r.players[1].Send(scores)

	if r.pairs[seat] >= n/2 {
		result.Completed = true
		r.finish(seat, events.ReasonCompleted)
	}
	return result, nil
}

// Quit forfeits the match for p. It reports false if the room had already
// ended or p is not seated here.
func (r *Room) Quit(p Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat := r.seat(p)
	if seat < 0 {
		return false
	}
	if !r.ended.CompareAndSwap(false, true) {
		return false
	}
	r.stopTimer()

	opp := 1 - seat
	r.players[opp].Send(protocol.NewOpponentQuit(p.Username()))

	awarded := [2]int{}
	awarded[opp] = max(r.scores[opp], MinQuitAward)
	awarded[seat] = 0

	result := r.result(opp, awarded, events.ReasonQuit)
	r.recorder.RecordQuit(context.Background(), result, p.AccountID())

	r.logger.Info("player quit",
		slog.String("quitter", p.Username()),
		slog.Int("awarded", awarded[opp]))
	r.close()
	return true
}

// Snapshot returns the current room state
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := 0
	if !r.startedAt.IsZero() && !r.ended.Load() {
		left := r.difficulty.TimeLimit() - r.clock.Now().Sub(r.startedAt)
		remaining = max(int(left/time.Second), 0)
	}
	return Snapshot{
		ID:               r.id,
		Difficulty:       r.difficulty,
		Player1:          r.players[0].Username(),
		Player2:          r.players[1].Username(),
		Player1Score:     r.scores[0],
		Player2Score:     r.scores[1],
		StartedAt:        r.startedAt,
		RemainingSeconds: remaining,
		Ended:            r.ended.Load(),
	}
}

func (r *Room) timeout() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended.Load() {
		return
	}

	winner := -1
	switch {
	case r.scores[0] > r.scores[1]:
		winner = 0
	case r.scores[1] > r.scores[0]:
		winner = 1
	}
	r.finish(winner, events.ReasonTimeout)
}

// finish ends the match with the given winning seat, or -1 for a draw.
// Must be called with mu held.
func (r *Room) finish(winner int, reason string) {
	if !r.ended.CompareAndSwap(false, true) {
		return
	}
	r.stopTimer()

	result := r.result(winner, r.scores, reason)
	r.recorder.RecordResult(context.Background(), result)

	name := protocol.Draw
	if winner >= 0 {
		name = r.players[winner].Username()
	}
	end := protocol.GameEnd{
		Type:         protocol.TypeGameEnd,
		Winner:       name,
		Player1:      r.players[0].Username(),
		Player2:      r.players[1].Username(),
		Player1Score: r.scores[0],
		Player2Score: r.scores[1],
		Duration:     result.Record.Duration,
	}
	r.players[0].Send(end)
	r.players[1].Send(end)

	r.logger.Info("game ended",
		slog.String("reason", reason),
		slog.String("winner", name),
		slog.Int("player1_score", r.scores[0]),
		slog.Int("player2_score", r.scores[1]),
		slog.Int("duration", end.Duration))
	r.close()
}

func (r *Room) result(winner int, scores [2]int, reason string) stats.MatchResult {
	now := r.clock.Now()
	record := model.MatchRecord{
		Player1ID:    r.players[0].AccountID(),
		Player2ID:    r.players[1].AccountID(),
		Player1Name:  r.players[0].Username(),
		Player2Name:  r.players[1].Username(),
		Difficulty:   r.difficulty,
		Player1Score: scores[0],
		Player2Score: scores[1],
		Duration:     r.elapsed(now),
		CreatedAt:    now,
	}
	if winner >= 0 {
		id := r.players[winner].AccountID()
		record.WinnerID = &id
	}
	return stats.MatchResult{RoomID: r.id, Reason: reason, Record: record}
}

// elapsed is whole seconds since Start, or 0 for a room that never started
func (r *Room) elapsed(now time.Time) int {
	if r.startedAt.IsZero() {
		return 0
	}
	return int(now.Sub(r.startedAt) / time.Second)
}

func (r *Room) update(p Participant, f FlipResult) protocol.GameUpdate {
	return protocol.GameUpdate{
		Type:    protocol.TypeGameUpdate,
		Player:  p.Username(),
		Card1:   f.Card1,
		Card2:   f.Card2,
		Value1:  f.Value1,
		Value2:  f.Value2,
		Matched: f.Matched,
	}
}

func (r *Room) close() {
	r.players[0].ReleaseRoom(r)
	r.players[1].ReleaseRoom(r)
	if r.onClose != nil {
		r.onClose(r)
	}
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Room) seat(p Participant) int {
	switch p {
	case r.players[0]:
		return 0
	case r.players[1]:
		return 1
	default:
		return -1
	}
}
