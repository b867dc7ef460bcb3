package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/memorymatch/internal/dependencies/mocks"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/testutil"
)

var startTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type RoomSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	recorder *fakeRecorder
	registry *Registry
	ended    []*Room

	alice *fakePlayer
	bob   *fakePlayer
}

func TestRoomSuite(t *testing.T) {
	suite.Run(t, new(RoomSuite))
}

func (s *RoomSuite) SetupTest() {
	s.clock = mocks.NewMockClock(startTime)
	s.random = mocks.NewMockRandom()
	s.recorder = &fakeRecorder{}
	s.ended = nil
	s.registry = NewRegistry(s.clock, s.random, s.recorder, testutil.NopLogger(),
		WithIDFunc(func() string { return "room-1" }),
		WithOnEnded(func(r *Room) { s.ended = append(s.ended, r) }))

	s.alice = newFakePlayer("alice", 1)
	s.bob = newFakePlayer("bob", 2)
}

// startRoom starts a room whose deck is [0,0,1,1,2,2,...]
func (s *RoomSuite) startRoom(d model.Difficulty) *Room {
	room := s.registry.New(d, s.alice, s.bob)
	s.registry.Start(room)
	return room
}

func (s *RoomSuite) startRoomWithValues(d model.Difficulty, values []int) *Room {
	room := s.registry.New(d, s.alice, s.bob)
	room.values = values
	s.registry.Start(room)
	return room
}

// matchAllBut flips every pair for p except the last one
func (s *RoomSuite) matchAllBut(room *Room, p Participant, remaining int) {
	for i := 0; i+1 < room.CardCount()-2*remaining; i += 2 {
		res, err := room.FlipCard(p, i, i+1)
		s.Require().NoError(err)
		s.Require().True(res.Matched)
	}
}

// Start tests

func (s *RoomSuite) TestStartSendsIdenticalBoards() {
	s.startRoom(model.DifficultyEasy)

	aliceStart, ok := s.alice.gameStart()
	s.Require().True(ok)
	bobStart, ok := s.bob.gameStart()
	s.Require().True(ok)

	s.Equal(aliceStart.CardValues, bobStart.CardValues)
	s.Equal("bob", aliceStart.Opponent)
	s.Equal("alice", bobStart.Opponent)
	s.Equal("room-1", aliceStart.RoomID)
	s.Equal(model.DifficultyEasy, aliceStart.Difficulty)
	s.Equal(12, aliceStart.CardCount)
	s.Equal(180, aliceStart.TimeLimit)
	s.Equal(3, aliceStart.Rows)
	s.Equal(4, aliceStart.Cols)
}

func (s *RoomSuite) TestStartArmsDeadlineTimer() {
	s.startRoom(model.DifficultyMedium)

	s.Equal(1, s.clock.PendingTimers())
	s.Equal(1, s.registry.Count())
}

func (s *RoomSuite) TestStartTwiceIsNoop() {
	room := s.startRoom(model.DifficultyMedium)
	room.Start()

	s.Equal(1, s.clock.PendingTimers())
	s.Len(s.alice.sent(), 1)
}

// Flip tests

func (s *RoomSuite) TestFlipRejectsSameCard() {
	room := s.startRoom(model.DifficultyEasy)

	_, err := room.FlipCard(s.alice, 3, 3)
	s.ErrorIs(err, model.ErrInvalidFlip)
}

func (s *RoomSuite) TestFlipRejectsOutOfRange() {
	room := s.startRoom(model.DifficultyEasy)

	for _, pair := range [][2]int{{-1, 0}, {0, -1}, {0, 12}, {12, 13}} {
		_, err := room.FlipCard(s.alice, pair[0], pair[1])
		s.ErrorIs(err, model.ErrInvalidFlip, "%v", pair)
	}
	s.Zero(room.Snapshot().Player1Score)
}

func (s *RoomSuite) TestFlipRejectsOutsider() {
	room := s.startRoom(model.DifficultyEasy)

	_, err := room.FlipCard(newFakePlayer("carol", 3), 0, 1)
	s.ErrorIs(err, model.ErrNotParticipant)
}

func (s *RoomSuite) TestFlipMatchingPair() {
	room := s.startRoomWithValues(model.DifficultyEasy, []int{3, 3, 1, 1, 0, 0, 2, 2, 4, 4, 5, 5})
	s.alice.clear()
	s.bob.clear()

	res, err := room.FlipCard(s.alice, 0, 1)
	s.Require().NoError(err)

	s.True(res.Matched)
	s.False(res.Completed)
	s.Equal(3, res.Value1)
	s.Equal(3, res.Value2)
	s.Equal(10, room.scores[0])
	s.Equal(1, room.pairs[0])

	aliceMsgs := s.alice.sent()
	s.Require().Len(aliceMsgs, 2)
	s.Equal(protocol.GameUpdate{
		Type: protocol.TypeGameUpdate, Player: "alice",
		Card1: 0, Card2: 1, Value1: 3, Value2: 3, Matched: true,
	}, aliceMsgs[0])
	s.Equal(protocol.NewScoreUpdate("alice", 10, "bob", 0), aliceMsgs[1])

	// The opponent only sees the score change
	bobMsgs := s.bob.sent()
	s.Require().Len(bobMsgs, 1)
	s.Equal(protocol.NewScoreUpdate("alice", 10, "bob", 0), bobMsgs[0])
}

func (s *RoomSuite) TestFlipMismatchOnlyNotifiesCaller() {
	room := s.startRoomWithValues(model.DifficultyEasy, []int{3, 3, 1, 1, 0, 0, 2, 2, 4, 4, 5, 5})
	s.alice.clear()
	s.bob.clear()

	res, err := room.FlipCard(s.alice, 1, 2)
	s.Require().NoError(err)

	s.False(res.Matched)
	s.Len(s.alice.sent(), 1)
	s.Empty(s.bob.sent())
	s.Zero(room.scores[0])
}

func (s *RoomSuite) TestFlipAlreadyMatchedIsAcknowledgedWithoutScoring() {
	room := s.startRoom(model.DifficultyEasy)
	_, _ = room.FlipCard(s.alice, 0, 1)
	s.alice.clear()

	res, err := room.FlipCard(s.alice, 0, 1)
	s.Require().NoError(err)

	s.True(res.AlreadyFlipped)
	s.False(res.Matched)
	s.Equal(10, room.scores[0])
	s.Equal(1, room.pairs[0])

	msgs := s.alice.sent()
	s.Require().Len(msgs, 1)
	update, ok := msgs[0].(protocol.GameUpdate)
	s.Require().True(ok)
	s.False(update.Matched)
}

func (s *RoomSuite) TestFlippedStateIsPerPlayer() {
	room := s.startRoom(model.DifficultyEasy)
	_, _ = room.FlipCard(s.alice, 0, 1)

	res, err := room.FlipCard(s.bob, 0, 1)
	s.Require().NoError(err)
	s.True(res.Matched)
	s.Equal(10, room.scores[0])
	s.Equal(10, room.scores[1])
}

// Completion tests

func (s *RoomSuite) TestCompletionEndsGame() {
	room := s.startRoom(model.DifficultyEasy)
	s.matchAllBut(room, s.alice, 1)
	s.clock.Advance(95 * time.Second)

	res, err := room.FlipCard(s.alice, 10, 11)
	s.Require().NoError(err)
	s.True(res.Completed)
	s.True(room.Ended())

	for _, p := range []*fakePlayer{s.alice, s.bob} {
		ends := p.gameEnds()
		s.Require().Len(ends, 1)
		s.Equal(protocol.GameEnd{
			Type: protocol.TypeGameEnd, Winner: "alice", Player1: "alice", Player2: "bob",
			Player1Score: 60, Player2Score: 0, Duration: 95,
		}, ends[0])
		s.Equal(1, p.releasedCount())
	}

	s.Require().Len(s.recorder.results, 1)
	result := s.recorder.results[0]
	s.Equal(events.ReasonCompleted, result.Reason)
	s.Equal("room-1", result.RoomID)
	s.Require().NotNil(result.Record.WinnerID)
	s.Equal(model.AccountID(1), *result.Record.WinnerID)
	s.Equal(60, result.Record.Player1Score)
	s.Equal(95, result.Record.Duration)

	s.Zero(s.clock.PendingTimers())
	s.Zero(s.registry.Count())
	s.Equal([]*Room{room}, s.ended)
}

func (s *RoomSuite) TestEndedRoomIsInert() {
	room := s.startRoom(model.DifficultyEasy)
	s.matchAllBut(room, s.alice, 0)
	s.Require().True(room.Ended())

	_, err := room.FlipCard(s.bob, 0, 1)
	s.ErrorIs(err, model.ErrRoomEnded)
	s.False(room.Quit(s.bob))

	room.timeout()
	s.Equal(1, s.recorder.total())
	s.Len(s.bob.gameEnds(), 1)
}

func (s *RoomSuite) TestBobCanWinByCompletion() {
	room := s.startRoom(model.DifficultyEasy)
	_, _ = room.FlipCard(s.alice, 0, 1)
	s.matchAllBut(room, s.bob, 0)

	ends := s.alice.gameEnds()
	s.Require().Len(ends, 1)
	s.Equal("bob", ends[0].Winner)
	s.Equal(10, ends[0].Player1Score)
	s.Equal(60, ends[0].Player2Score)
}

// Timeout tests

func (s *RoomSuite) TestTimeoutHigherScoreWins() {
	room := s.startRoom(model.DifficultyMedium)
	room.scores = [2]int{40, 30}

	s.clock.Advance(240 * time.Second)

	s.True(room.Ended())
	ends := s.bob.gameEnds()
	s.Require().Len(ends, 1)
	s.Equal("alice", ends[0].Winner)
	s.Equal(240, ends[0].Duration)

	s.Require().Len(s.recorder.results, 1)
	s.Equal(events.ReasonTimeout, s.recorder.results[0].Reason)
	s.Equal(model.AccountID(1), *s.recorder.results[0].Record.WinnerID)
}

func (s *RoomSuite) TestTimeoutTieIsDraw() {
	room := s.startRoom(model.DifficultyMedium)
	room.scores = [2]int{40, 40}

	s.clock.Advance(240 * time.Second)

	ends := s.alice.gameEnds()
	s.Require().Len(ends, 1)
	s.Equal(protocol.Draw, ends[0].Winner)

	s.Require().Len(s.recorder.results, 1)
	record := s.recorder.results[0].Record
	s.Nil(record.WinnerID)
	s.Equal(40, record.Player1Score)
	s.Equal(40, record.Player2Score)
}

func (s *RoomSuite) TestTimeoutDoesNotFireEarly() {
	room := s.startRoom(model.DifficultyHard)

	s.clock.Advance(299 * time.Second)
	s.False(room.Ended())

	s.clock.Advance(time.Second)
	s.True(room.Ended())
}

// Quit tests

func (s *RoomSuite) TestQuitAwardsOpponentMinimum() {
	room := s.startRoom(model.DifficultyEasy)
	_, _ = room.FlipCard(s.alice, 0, 1)
	_, _ = room.FlipCard(s.bob, 0, 1)
	s.alice.clear()
	s.bob.clear()

	s.True(room.Quit(s.bob))

	s.Equal([]any{protocol.NewOpponentQuit("bob")}, s.alice.sent())
	s.Empty(s.bob.sent())

	s.Require().Len(s.recorder.quits, 1)
	quit := s.recorder.quits[0]
	s.Equal(model.AccountID(2), quit.quitter)
	s.Equal(events.ReasonQuit, quit.result.Reason)
	s.Equal(100, quit.result.Record.Player1Score)
	s.Equal(0, quit.result.Record.Player2Score)
	s.Equal(model.AccountID(1), *quit.result.Record.WinnerID)

	s.Equal(1, s.alice.releasedCount())
	s.Equal(1, s.bob.releasedCount())
	s.Zero(s.clock.PendingTimers())
	s.Zero(s.registry.Count())
}

func (s *RoomSuite) TestQuitKeepsHigherOpponentScore() {
	room := s.startRoom(model.DifficultyHard)
	room.scores = [2]int{150, 20}

	s.True(room.Quit(s.bob))

	s.Equal(150, s.recorder.quits[0].result.Record.Player1Score)
}

func (s *RoomSuite) TestQuitByPlayerOneAwardsPlayerTwo() {
	room := s.startRoom(model.DifficultyEasy)

	s.True(room.Quit(s.alice))

	record := s.recorder.quits[0].result.Record
	s.Equal(0, record.Player1Score)
	s.Equal(100, record.Player2Score)
	s.Equal(model.AccountID(2), *record.WinnerID)
}

func (s *RoomSuite) TestQuitIsExactlyOnce() {
	room := s.startRoom(model.DifficultyEasy)

	s.True(room.Quit(s.bob))
	s.False(room.Quit(s.alice))
	s.False(room.Quit(s.bob))

	s.clock.Advance(time.Hour)
	s.Equal(1, s.recorder.total())
}

func (s *RoomSuite) TestQuitFromOutsiderIsIgnored() {
	room := s.startRoom(model.DifficultyEasy)

	s.False(room.Quit(newFakePlayer("carol", 3)))
	s.False(room.Ended())
	s.Zero(s.recorder.total())
}

// Concurrency

func (s *RoomSuite) TestCompletionRacingTimerEndsOnce() {
	for i := 0; i < 50; i++ {
		s.SetupTest()
		room := s.startRoom(model.DifficultyEasy)
		s.matchAllBut(room, s.alice, 1)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = room.FlipCard(s.alice, 10, 11)
		}()
		go func() {
			defer wg.Done()
			s.clock.Advance(180 * time.Second)
		}()
		go func() {
			defer wg.Done()
			room.Quit(s.bob)
		}()
		wg.Wait()

		s.True(room.Ended())
		s.Equal(1, s.recorder.total(), "iteration %d", i)
		s.LessOrEqual(len(s.alice.gameEnds()), 1)
		s.Equal(1, s.alice.releasedCount())
		s.Equal(1, s.bob.releasedCount())
		s.Zero(s.registry.Count())
	}
}

func (s *RoomSuite) TestConcurrentFlipsOfSamePairScoreOnce() {
	room := s.startRoom(model.DifficultyHard)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = room.FlipCard(s.alice, 0, 1)
		}()
	}
	wg.Wait()

	s.Equal(10, room.Snapshot().Player1Score)
}

// Snapshot

func (s *RoomSuite) TestSnapshot() {
	room := s.startRoom(model.DifficultyEasy)
	_, _ = room.FlipCard(s.bob, 2, 3)
	s.clock.Advance(60 * time.Second)

	snap := room.Snapshot()
	s.Equal("room-1", snap.ID)
	s.Equal("alice", snap.Player1)
	s.Equal("bob", snap.Player2)
	s.Equal(10, snap.Player2Score)
	s.Equal(120, snap.RemainingSeconds)
	s.Equal(startTime, snap.StartedAt)
	s.False(snap.Ended)
}

func (s *RoomSuite) TestOpponent() {
	room := s.startRoom(model.DifficultyEasy)

	s.Equal(s.bob, room.Opponent(s.alice))
	s.Equal(s.alice, room.Opponent(s.bob))
	s.Nil(room.Opponent(newFakePlayer("carol", 3)))
}
