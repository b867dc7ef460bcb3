// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/storage"
)

// Suite runs the storage contract against a backend.
// Embed it or pass it to suite.Run with NewStorage set.
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store for each test
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

func (s *Suite) SetupTest() {
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) createAccount(username string) *model.Account {
	account := &model.Account{
		Username:     username,
		PasswordHash: "hash-" + username,
		CreatedAt:    s.Now,
		LastLogin:    s.Now,
	}
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))
	return account
}

func (s *Suite) saveMatch(p1, p2 *model.Account, winner *model.Account, s1, s2 int, at time.Time) {
	record := &model.MatchRecord{
		Player1ID:    p1.ID,
		Player2ID:    p2.ID,
		Player1Name:  p1.Username,
		Player2Name:  p2.Username,
		Difficulty:   model.DifficultyEasy,
		Player1Score: s1,
		Player2Score: s2,
		Duration:     42,
		CreatedAt:    at,
	}
	if winner != nil {
		id := winner.ID
		record.WinnerID = &id
	}
	s.Require().NoError(s.Storage.SaveMatch(s.Ctx, record))
	s.NotZero(record.ID)
}

// Account tests

func (s *Suite) TestCreateAndGetAccount() {
	created := s.createAccount("alice")
	s.NotZero(created.ID)

	byID, err := s.Storage.GetAccount(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal("hash-alice", byID.PasswordHash)
	s.Zero(byID.TotalScore)
	s.False(byID.Banned)

	byName, err := s.Storage.GetAccountByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(created.ID, byName.ID)
}

func (s *Suite) TestCreateAccountAssignsDistinctIDs() {
	a := s.createAccount("alice")
	b := s.createAccount("bob")
	s.NotEqual(a.ID, b.ID)
}

func (s *Suite) TestCreateAccountRejectsDuplicateUsername() {
	s.createAccount("alice")

	err := s.Storage.CreateAccount(s.Ctx, &model.Account{Username: "alice", PasswordHash: "x", CreatedAt: s.Now})
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, 9999)
	s.ErrorIs(err, model.ErrAccountNotFound)

	_, err = s.Storage.GetAccountByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestTouchLastLogin() {
	a := s.createAccount("alice")
	later := s.Now.Add(time.Hour)

	s.Require().NoError(s.Storage.TouchLastLogin(s.Ctx, a.ID, later))

	got, err := s.Storage.GetAccount(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.True(later.Equal(got.LastLogin), "last login %v", got.LastLogin)
}

// Statistics tests

func (s *Suite) TestUpdateScoreByOutcome() {
	a := s.createAccount("alice")

	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, a.ID, 60, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, a.ID, 20, model.OutcomeLoss))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, a.ID, 40, model.OutcomeDraw))

	got, err := s.Storage.GetAccount(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(120, got.TotalScore)
	s.Equal(1, got.Wins)
	s.Equal(1, got.Losses)
}

func (s *Suite) TestUpdateScoreUnknownAccount() {
	err := s.Storage.UpdateScore(s.Ctx, 9999, 10, model.OutcomeWin)
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestIncrementQuitCountReturnsNewCount() {
	a := s.createAccount("alice")

	for want := 1; want <= 3; want++ {
		count, err := s.Storage.IncrementQuitCount(s.Ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(want, count)
	}

	got, err := s.Storage.GetAccount(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(3, got.QuitCount)
}

func (s *Suite) TestBanAccount() {
	a := s.createAccount("alice")

	s.Require().NoError(s.Storage.BanAccount(s.Ctx, a.ID))

	got, err := s.Storage.GetAccount(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.True(got.Banned)
}

func (s *Suite) TestLeaderboardOrderingAndAggregates() {
	alice := s.createAccount("alice")
	bob := s.createAccount("bob")
	carol := s.createAccount("carol")

	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, alice.ID, 100, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, alice.ID, 0, model.OutcomeLoss))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, alice.ID, 0, model.OutcomeLoss))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, bob.ID, 100, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, bob.ID, 0, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, carol.ID, 150, model.OutcomeLoss))

	board, err := s.Storage.Leaderboard(s.Ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 3)

	s.Equal("carol", board[0].Username)
	s.Equal(150, board[0].TotalScore)
	s.Equal(0.0, board[0].WinRate)

	// equal scores fall back to wins
	s.Equal("bob", board[1].Username)
	s.Equal(2, board[1].TotalGames)
	s.Equal(100.0, board[1].WinRate)

	s.Equal("alice", board[2].Username)
	s.Equal(3, board[2].TotalGames)
	s.Equal(33.33, board[2].WinRate)
}

func (s *Suite) TestLeaderboardExcludesBannedAndHonoursLimit() {
	alice := s.createAccount("alice")
	bob := s.createAccount("bob")
	carol := s.createAccount("carol")
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, alice.ID, 30, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, bob.ID, 20, model.OutcomeWin))
	s.Require().NoError(s.Storage.UpdateScore(s.Ctx, carol.ID, 10, model.OutcomeWin))
	s.Require().NoError(s.Storage.BanAccount(s.Ctx, alice.ID))

	board, err := s.Storage.Leaderboard(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(board, 1)
	s.Equal("bob", board[0].Username)
}

func (s *Suite) TestLeaderboardEmpty() {
	board, err := s.Storage.Leaderboard(s.Ctx, 10)
	s.Require().NoError(err)
	s.Empty(board)
}

// Match history tests

func (s *Suite) TestMatchHistoryFromEachSide() {
	alice := s.createAccount("alice")
	bob := s.createAccount("bob")
	s.saveMatch(alice, bob, alice, 60, 40, s.Now)

	aliceHistory, err := s.Storage.MatchHistory(s.Ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Require().Len(aliceHistory, 1)
	s.Equal("bob", aliceHistory[0].Opponent)
	s.Equal("WIN", aliceHistory[0].Result)
	s.Equal(60, aliceHistory[0].MyScore)
	s.Equal(40, aliceHistory[0].OpponentScore)
	s.Equal(model.DifficultyEasy, aliceHistory[0].Difficulty)
	s.Equal(42, aliceHistory[0].Duration)

	bobHistory, err := s.Storage.MatchHistory(s.Ctx, bob.ID, 20)
	s.Require().NoError(err)
	s.Require().Len(bobHistory, 1)
	s.Equal("alice", bobHistory[0].Opponent)
	s.Equal("LOSS", bobHistory[0].Result)
	s.Equal(40, bobHistory[0].MyScore)
	s.Equal(60, bobHistory[0].OpponentScore)
}

func (s *Suite) TestMatchHistoryDrawNewestFirstAndLimit() {
	alice := s.createAccount("alice")
	bob := s.createAccount("bob")
	carol := s.createAccount("carol")
	s.saveMatch(alice, bob, nil, 30, 30, s.Now)
	s.saveMatch(carol, alice, carol, 50, 10, s.Now.Add(time.Minute))
	s.saveMatch(bob, carol, bob, 20, 10, s.Now.Add(2*time.Minute))

	history, err := s.Storage.MatchHistory(s.Ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("carol", history[0].Opponent)
	s.Equal("LOSS", history[0].Result)
	s.Equal("bob", history[1].Opponent)
	s.Equal("DRAW", history[1].Result)

	limited, err := s.Storage.MatchHistory(s.Ctx, alice.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal("carol", limited[0].Opponent)
}

func (s *Suite) TestMatchHistoryEmpty() {
	alice := s.createAccount("alice")

	history, err := s.Storage.MatchHistory(s.Ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *Suite) TestPing() {
	s.NoError(s.Storage.Ping(s.Ctx))
}
