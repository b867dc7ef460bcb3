package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/memorymatch/internal/dependencies/mocks"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/services/auth"
	"github.com/mcoot/memorymatch/internal/services/stats"
	"github.com/mcoot/memorymatch/internal/storage/memory"
	"github.com/mcoot/memorymatch/internal/testutil"
)

type HubSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	auth     *auth.Service
	sessions *Registry
	rooms    *game.Registry
	hub      *Hub

	ctx     context.Context
	cancel  context.CancelFunc
	clients []*testClient
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	logger := testutil.NopLogger()
	rnd := mocks.NewMockRandom()

	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.auth = auth.New(s.storage, s.clock, auth.Config{BcryptCost: bcrypt.MinCost}, logger)
	statsService := stats.New(s.storage, events.Nop{}, stats.DefaultConfig(), logger)

	s.sessions = NewRegistry(logger)
	s.rooms = game.NewRegistry(s.clock, rnd, statsService, logger,
		game.WithOnEnded(func(*game.Room) { s.sessions.BroadcastPlayerList() }))
	s.hub = NewHub(DefaultConfig(), s.auth, statsService, s.rooms, s.sessions, rnd, logger)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.clients = nil
}

func (s *HubSuite) TearDownTest() {
	s.cancel()
	for _, c := range s.clients {
		c.waitClosed()
	}
}

func (s *HubSuite) connect(name string) *testClient {
	c := startClient(s.T(), s.ctx, s.hub, name)
	s.clients = append(s.clients, c)
	return c
}

func (s *HubSuite) register(username string) *model.Account {
	account, err := s.auth.Register(s.ctx, username, "secret")
	s.Require().NoError(err)
	return account
}

// login registers username and logs a new client in
func (s *HubSuite) login(username string) *testClient {
	s.register(username)
	c := s.connect(username)
	c.send(map[string]any{"type": "LOGIN", "username": username, "password": "secret"})
	c.expect(protocol.TypeLoginSuccess)
	return c
}

// startMatch has challenger challenge target, who accepts
func (s *HubSuite) startMatch(challenger, target *testClient, difficulty string) (message, message) {
	challenger.send(map[string]any{"type": "CHALLENGE", "target": target.name, "difficulty": difficulty})
	target.expect(protocol.TypeChallengeReceived)
	target.send(map[string]any{"type": "ACCEPT_CHALLENGE", "challenger": challenger.name, "difficulty": difficulty})
	return challenger.expect(protocol.TypeGameStart), target.expect(protocol.TypeGameStart)
}

func (s *HubSuite) session(username string) *Session {
	session, ok := s.sessions.Get(username)
	s.Require().True(ok)
	return session
}

func (s *HubSuite) eventuallyInLobby(username string) {
	s.Eventually(func() bool {
		session, ok := s.sessions.Get(username)
		return ok && session.State() == StateLobby
	}, time.Second, 5*time.Millisecond)
}

// Protocol errors

func (s *HubSuite) TestMalformedMessageKeepsConnectionOpen() {
	c := s.connect("anon")

	c.sendRaw("not json")
	c.expectError(protocol.MsgInvalidFormat)

	c.sendRaw(`{"username":"alice"}`)
	c.expectError(protocol.MsgInvalidFormat)

	c.send(map[string]any{"type": "REGISTER", "username": "alice", "password": "secret"})
	c.expect(protocol.TypeRegisterSuccess)
}

func (s *HubSuite) TestUnknownType() {
	c := s.connect("anon")

	c.send(map[string]any{"type": "DANCE"})
	c.expectError("Unknown message type: DANCE")
}

func (s *HubSuite) TestMissingField() {
	c := s.connect("anon")

	c.send(map[string]any{"type": "LOGIN", "username": "alice"})
	c.expectError("Missing field: password")
}

func (s *HubSuite) TestLobbyMessagesRequireLogin() {
	c := s.connect("anon")

	for _, t := range []string{"GET_PLAYERS", "GET_LEADERBOARD", "GET_MATCH_HISTORY"} {
		c.send(map[string]any{"type": t})
		c.expectError(protocol.MsgLoginRequired)
	}
	c.send(map[string]any{"type": "CHALLENGE", "target": "bob"})
	c.expectError(protocol.MsgLoginRequired)
}

func (s *HubSuite) TestHandlerPanicIsRecovered() {
	s.hub.router["BOOM"] = route{handle: func(context.Context, *Session, protocol.Envelope) {
		panic("boom")
	}}
	c := s.connect("anon")

	c.send(map[string]any{"type": "BOOM"})
	c.expectError(protocol.MsgInternalError)

	c.send(map[string]any{"type": "DANCE"})
	c.expectError("Unknown message type: DANCE")
}

// Registration and login

func (s *HubSuite) TestRegister() {
	c := s.connect("anon")

	c.send(map[string]any{"type": "REGISTER", "username": "alice", "password": "secret"})
	msg := c.expect(protocol.TypeRegisterSuccess)
	s.Equal(protocol.MsgRegistered, msg.str("message"))

	c.send(map[string]any{"type": "REGISTER", "username": "alice", "password": "other"})
	msg = c.expect(protocol.TypeRegisterFailed)
	s.Equal(protocol.MsgUsernameExists, msg.str("message"))

	// Registering does not log in
	s.Zero(s.sessions.Count())
}

func (s *HubSuite) TestRegisterValidation() {
	c := s.connect("anon")

	c.send(map[string]any{"type": "REGISTER", "username": "alice", "password": "abc"})
	s.Equal("Password must be at least 4 characters", c.expect(protocol.TypeRegisterFailed).str("message"))

	c.send(map[string]any{"type": "REGISTER", "username": "   ", "password": "secret"})
	s.Equal("Username is required", c.expect(protocol.TypeRegisterFailed).str("message"))

	long := fmt.Sprintf("%051d", 0)
	c.send(map[string]any{"type": "REGISTER", "username": long, "password": "secret"})
	s.Equal("Username must be at most 50 characters", c.expect(protocol.TypeRegisterFailed).str("message"))

	c.send(map[string]any{"type": "REGISTER", "username": "alice", "password": strings.Repeat("p", 73)})
	s.Equal("Password must be at most 72 bytes", c.expect(protocol.TypeRegisterFailed).str("message"))

	c.send(map[string]any{"type": "REGISTER", "username": "Draw", "password": "secret"})
	s.Equal("Username is reserved", c.expect(protocol.TypeRegisterFailed).str("message"))

	// Nothing above reached the store
	_, err := s.storage.GetAccountByUsername(s.ctx, "alice")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *HubSuite) TestLoginSuccess() {
	account := s.register("alice")
	s.Require().NoError(s.storage.UpdateScore(s.ctx, account.ID, 30, model.OutcomeWin))
	c := s.connect("alice")

	c.send(map[string]any{"type": "LOGIN", "username": "alice", "password": "secret"})
	msg := c.expect(protocol.TypeLoginSuccess)

	s.Equal(int(account.ID), msg.num("id"))
	s.Equal("alice", msg.str("username"))
	s.Equal(30, msg.num("total_score"))
	s.Equal(1, msg.num("wins"))
	s.Equal(0, msg.num("losses"))
	s.Equal(0, msg.num("quit_count"))

	s.Equal(StateLobby, s.session("alice").State())
}

func (s *HubSuite) TestLoginFailuresAreIndistinguishable() {
	banned := s.register("mallory")
	s.Require().NoError(s.storage.BanAccount(s.ctx, banned.ID))
	s.register("alice")
	c := s.connect("anon")

	attempts := []map[string]any{
		{"type": "LOGIN", "username": "alice", "password": "wrong"},
		{"type": "LOGIN", "username": "nobody", "password": "secret"},
		{"type": "LOGIN", "username": "mallory", "password": "secret"},
	}
	for _, attempt := range attempts {
		c.send(attempt)
		msg := c.expect(protocol.TypeLoginFailed)
		s.Equal(protocol.MsgInvalidCredentials, msg.str("message"))
	}
	s.Zero(s.sessions.Count())
}

func (s *HubSuite) TestLoginTwiceOnSameSession() {
	c := s.login("alice")

	c.send(map[string]any{"type": "LOGIN", "username": "alice", "password": "secret"})
	c.expectError(protocol.MsgAlreadyLoggedIn)
}

func (s *HubSuite) TestSecondLoginForOnlineAccountIsRejected() {
	first := s.login("alice")
	original := s.session("alice")

	second := s.connect("alice-2")
	second.send(map[string]any{"type": "LOGIN", "username": "alice", "password": "secret"})
	msg := second.expect(protocol.TypeLoginFailed)
	s.Equal(protocol.MsgAccountLoggedIn, msg.str("message"))

	s.Same(original, s.session("alice"))

	// The first session is unaffected
	first.send(map[string]any{"type": "GET_PLAYERS"})
	first.expect(protocol.TypePlayerList)
}

func (s *HubSuite) TestLoginBroadcastsPlayerList() {
	alice := s.login("alice")
	s.login("bob")

	msg := alice.expectWhere(protocol.TypePlayerList, func(m message) bool {
		players, _ := m["players"].([]any)
		return len(players) == 2
	})
	players := msg["players"].([]any)
	s.Equal(map[string]any{"username": "alice", "inGame": false}, players[0])
	s.Equal(map[string]any{"username": "bob", "inGame": false}, players[1])
}

// Challenge and play

func (s *HubSuite) TestFullMatch() {
	alice := s.login("alice")
	bob := s.login("bob")

	aliceStart, bobStart := s.startMatch(alice, bob, "easy")
	s.Equal("bob", aliceStart.str("opponent"))
	s.Equal("alice", bobStart.str("opponent"))
	s.Equal("EASY", aliceStart.str("difficulty"))
	s.Equal(aliceStart["cardValues"], bobStart["cardValues"])
	s.Equal(StateInGame, s.session("alice").State())

	for i := 0; i < 12; i += 2 {
		alice.send(map[string]any{"type": "CARD_FLIP", "card1": i, "card2": i + 1})
		update := alice.expect(protocol.TypeGameUpdate)
		s.True(update["matched"].(bool))
		score := bob.expect(protocol.TypeScoreUpdate)
		s.Equal(i/2*10+10, score.num("alice"))
	}

	for _, c := range []*testClient{alice, bob} {
		end := c.expect(protocol.TypeGameEnd)
		s.Equal("alice", end.str("winner"))
		s.Equal("alice", end.str("player1"))
		s.Equal("bob", end.str("player2"))
		s.Equal(60, end.num("player1Score"))
		s.Equal(0, end.num("player2Score"))
	}
	s.eventuallyInLobby("alice")
	s.eventuallyInLobby("bob")

	alice.send(map[string]any{"type": "GET_LEADERBOARD"})
	board := alice.expect(protocol.TypeLeaderboard)
	rows := board["data"].([]any)
	s.Require().Len(rows, 2)
	top := rows[0].(map[string]any)
	s.Equal("alice", top["username"])
	s.Equal(float64(60), top["total_score"])
	s.Equal(float64(100), top["win_rate"])

	bob.send(map[string]any{"type": "GET_MATCH_HISTORY"})
	history := bob.expect(protocol.TypeMatchHistory)["data"].([]any)
	s.Require().Len(history, 1)
	entry := history[0].(map[string]any)
	s.Equal("alice", entry["opponent"])
	s.Equal("LOSS", entry["result"])
	s.Equal("EASY", entry["difficulty"])
}

func (s *HubSuite) TestChallengeUnavailableTargets() {
	alice := s.login("alice")

	alice.send(map[string]any{"type": "CHALLENGE", "target": "ghost", "difficulty": "EASY"})
	alice.expectError(protocol.MsgPlayerNotAvailable)

	alice.send(map[string]any{"type": "CHALLENGE", "target": "alice", "difficulty": "EASY"})
	alice.expectError(protocol.MsgPlayerNotAvailable)
}

func (s *HubSuite) TestChallengeAroundAnActiveGame() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")
	s.startMatch(alice, bob, "MEDIUM")

	carol.send(map[string]any{"type": "CHALLENGE", "target": "bob", "difficulty": "EASY"})
	carol.expectError(protocol.MsgPlayerNotAvailable)

	alice.send(map[string]any{"type": "CHALLENGE", "target": "carol", "difficulty": "EASY"})
	alice.expectError(protocol.MsgAlreadyInGame)
	carol.expectSilence(protocol.TypeChallengeReceived)
}

func (s *HubSuite) TestAcceptFromOfflineChallenger() {
	bob := s.login("bob")

	bob.send(map[string]any{"type": "ACCEPT_CHALLENGE", "challenger": "ghost", "difficulty": "EASY"})
	bob.expectError(protocol.MsgCannotStartGame)
	s.Zero(s.rooms.Count())
}

func (s *HubSuite) TestAcceptWhenChallengerBusy() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")

	alice.send(map[string]any{"type": "CHALLENGE", "target": "carol", "difficulty": "EASY"})
	carol.expect(protocol.TypeChallengeReceived)
	s.startMatch(alice, bob, "EASY")

	carol.send(map[string]any{"type": "ACCEPT_CHALLENGE", "challenger": "alice", "difficulty": "EASY"})
	carol.expectError(protocol.MsgCannotStartGame)
	s.Equal(1, s.rooms.Count())
}

func (s *HubSuite) TestDeclineChallenge() {
	alice := s.login("alice")
	bob := s.login("bob")

	alice.send(map[string]any{"type": "CHALLENGE", "target": "bob", "difficulty": "HARD"})
	msg := bob.expect(protocol.TypeChallengeReceived)
	s.Equal("alice", msg.str("from"))
	s.Equal("HARD", msg.str("difficulty"))

	bob.send(map[string]any{"type": "DECLINE_CHALLENGE", "challenger": "alice"})
	s.Equal("bob", alice.expect(protocol.TypeChallengeDeclined).str("decliner"))
	s.Zero(s.rooms.Count())
}

func (s *HubSuite) TestInvalidMove() {
	alice := s.login("alice")
	bob := s.login("bob")
	s.startMatch(alice, bob, "EASY")

	alice.send(map[string]any{"type": "CARD_FLIP", "card1": 3, "card2": 3})
	alice.expectError(protocol.MsgInvalidMove)

	alice.send(map[string]any{"type": "CARD_FLIP", "card1": 0, "card2": 12})
	alice.expectError(protocol.MsgInvalidMove)
}

func (s *HubSuite) TestFlipOutsideGameIsIgnored() {
	alice := s.login("alice")

	alice.send(map[string]any{"type": "CARD_FLIP", "card1": 0, "card2": 1})
	alice.send(map[string]any{"type": "GET_PLAYERS"})
	s.Equal(string(protocol.TypePlayerList), alice.next().str("type"))
}

func (s *HubSuite) TestTimeoutDraw() {
	alice := s.login("alice")
	bob := s.login("bob")
	s.startMatch(alice, bob, "MEDIUM")

	s.clock.Advance(240 * time.Second)

	for _, c := range []*testClient{alice, bob} {
		end := c.expect(protocol.TypeGameEnd)
		s.Equal(protocol.Draw, end.str("winner"))
		s.Equal(240, end.num("duration"))
	}
}

// Quit and disconnect

func (s *HubSuite) TestQuitGame() {
	alice := s.login("alice")
	bob := s.login("bob")
	s.startMatch(alice, bob, "EASY")

	bob.send(map[string]any{"type": "QUIT_GAME"})

	s.Equal("bob", alice.expect(protocol.TypeOpponentQuit).str("quitter"))
	s.eventuallyInLobby("alice")
	s.eventuallyInLobby("bob")

	account, err := s.storage.GetAccountByUsername(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(1, account.QuitCount)
	s.Equal(1, account.Losses)

	winner, err := s.storage.GetAccountByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(100, winner.TotalScore)
}

func (s *HubSuite) TestDisconnectInGameCountsAsQuit() {
	alice := s.login("alice")
	bob := s.login("bob")
	s.startMatch(alice, bob, "EASY")

	_ = bob.conn.Close()
	bob.waitClosed()

	s.Equal("bob", alice.expect(protocol.TypeOpponentQuit).str("quitter"))
	alice.expectWhere(protocol.TypePlayerList, func(m message) bool {
		players, _ := m["players"].([]any)
		return len(players) == 1
	})
	_, online := s.sessions.Get("bob")
	s.False(online)
	s.Zero(s.rooms.Count())
}

func (s *HubSuite) TestLogoutClosesSession() {
	alice := s.login("alice")
	bob := s.login("bob")

	bob.send(map[string]any{"type": "LOGOUT"})
	bob.waitClosed()

	s.Equal(1, s.sessions.Count())
	alice.expectWhere(protocol.TypePlayerList, func(m message) bool {
		players, _ := m["players"].([]any)
		return len(players) == 1
	})
}

// Rematch

func (s *HubSuite) TestRematchDecline() {
	alice := s.login("alice")
	bob := s.login("bob")

	alice.send(map[string]any{"type": "REMATCH", "target": "bob", "difficulty": "HARD", "isRequest": true})
	offer := bob.expect(protocol.TypeRematchRequest)
	s.Equal("alice", offer.str("from"))
	s.Equal("HARD", offer.str("difficulty"))

	bob.send(map[string]any{"type": "REMATCH", "target": "alice", "difficulty": "HARD", "accept": false})
	s.Equal("bob", alice.expect(protocol.TypeRematchDeclined).str("from"))
	s.Zero(s.rooms.Count())
}

func (s *HubSuite) TestRematchAccept() {
	alice := s.login("alice")
	bob := s.login("bob")

	alice.send(map[string]any{"type": "REMATCH", "target": "bob", "difficulty": "HARD", "isRequest": true})
	bob.expect(protocol.TypeRematchRequest)
	bob.send(map[string]any{"type": "REMATCH", "target": "alice", "difficulty": "HARD", "accept": true})

	s.Equal("bob", alice.expect(protocol.TypeRematchAccepted).str("from"))
	aliceStart := alice.expect(protocol.TypeGameStart)
	bob.expect(protocol.TypeGameStart)
	s.Equal("HARD", aliceStart.str("difficulty"))
	s.Equal(30, aliceStart.num("cardCount"))

	rooms := s.rooms.List()
	s.Require().Len(rooms, 1)
	s.Equal("alice", rooms[0].Player1)
	s.Equal("bob", rooms[0].Player2)
}

func (s *HubSuite) TestRematchAcceptWhenRequesterBusy() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")
	s.startMatch(alice, carol, "EASY")

	bob.send(map[string]any{"type": "REMATCH", "target": "alice", "difficulty": "EASY", "accept": true})
	bob.expectError(protocol.MsgRematchPlayerBusy)
	alice.expectSilence(protocol.TypeRematchAccepted)
	s.Equal(1, s.rooms.Count())
}

func (s *HubSuite) TestRematchUnknownTarget() {
	alice := s.login("alice")

	alice.send(map[string]any{"type": "REMATCH", "target": "ghost", "isRequest": true})
	alice.expectError(protocol.MsgPlayerNotFound)
}

func (s *HubSuite) TestOpponentLeftLobbyIsRelayed() {
	alice := s.login("alice")
	bob := s.login("bob")

	alice.send(map[string]any{"type": "OPPONENT_LEFT_LOBBY", "opponent": "bob"})
	s.Equal("alice", bob.expect(protocol.TypeOpponentLeftLobby).str("opponent"))
}
