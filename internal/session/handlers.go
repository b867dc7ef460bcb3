package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/services/auth"
)

type handlerFunc func(ctx context.Context, s *Session, env protocol.Envelope)

type route struct {
	handle      handlerFunc
	requireAuth bool
}

func (h *Hub) routes() map[protocol.MessageType]route {
	return map[protocol.MessageType]route{
		protocol.TypeLogin:             {handle: handleLogin},
		protocol.TypeRegister:          {handle: handleRegister},
		protocol.TypeLogout:            {handle: handleLogout},
		protocol.TypeGetPlayers:        {handle: handleGetPlayers, requireAuth: true},
		protocol.TypeChallenge:         {handle: handleChallenge, requireAuth: true},
		protocol.TypeAcceptChallenge:   {handle: handleAcceptChallenge, requireAuth: true},
		protocol.TypeDeclineChallenge:  {handle: handleDeclineChallenge, requireAuth: true},
		protocol.TypeCardFlip:          {handle: handleCardFlip, requireAuth: true},
		protocol.TypeQuitGame:          {handle: handleQuitGame, requireAuth: true},
		protocol.TypeRematch:           {handle: handleRematch, requireAuth: true},
		protocol.TypeGetLeaderboard:    {handle: handleGetLeaderboard, requireAuth: true},
		protocol.TypeGetMatchHistory:   {handle: handleGetMatchHistory, requireAuth: true},
		protocol.TypeOpponentLeftLobby: {handle: handleOpponentLeftLobby, requireAuth: true},
	}
}

// handleMessage decodes and dispatches one inbound message. Nothing it does
// may end the read loop except LOGOUT.
func (s *Session) handleMessage(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log().Error("panic in message handler",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			s.Send(protocol.NewError(protocol.MsgInternalError))
		}
	}()

	env, err := protocol.Decode(data)
	if err != nil {
		s.log().Warn("malformed message", slog.Int("size", len(data)))
		s.Send(protocol.NewError(protocol.MsgInvalidFormat))
		return
	}

	r, ok := s.hub.router[env.Type]
	if !ok {
		s.log().Warn("unknown message type", slog.String("type", string(env.Type)))
		s.Send(protocol.NewError((&protocol.UnknownTypeError{Type: env.Type}).Error()))
		return
	}

	if r.requireAuth && !s.Authenticated() {
		s.Send(protocol.NewError(protocol.MsgLoginRequired))
		return
	}

	r.handle(ctx, s, env)
}

// bind decodes the request body, replying with an ERROR on failure
func (s *Session) bind(env protocol.Envelope, req protocol.Request) bool {
	err := env.Bind(req)
	if err == nil {
		return true
	}

	var missing *protocol.MissingFieldError
	if errors.As(err, &missing) {
		s.log().Warn("missing field",
			slog.String("type", string(env.Type)),
			slog.String("field", missing.Field))
		s.Send(protocol.NewError(missing.Error()))
		return false
	}
	s.Send(protocol.NewError(protocol.MsgInvalidFormat))
	return false
}

// Account handlers

func handleLogin(ctx context.Context, s *Session, env protocol.Envelope) {
	var req protocol.Credentials
	if !s.bind(env, &req) {
		return
	}
	if s.Authenticated() {
		s.Send(protocol.NewError(protocol.MsgAlreadyLoggedIn))
		return
	}

	account, err := s.hub.auth.Login(ctx, *req.Username, *req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.log().Info("login rejected", slog.String("username", *req.Username))
			s.Send(protocol.NewText(protocol.TypeLoginFailed, protocol.MsgInvalidCredentials))
			return
		}
		s.log().Error("login failed", slog.String("error", err.Error()))
		s.Send(protocol.NewText(protocol.TypeLoginFailed, protocol.MsgServiceUnavailable))
		return
	}

	s.authenticate(account)
	if err := s.hub.sessions.Add(s); err != nil {
		s.unauthenticate()
		s.log().Info("login rejected, account already online", slog.String("username", account.Username))
		s.Send(protocol.NewText(protocol.TypeLoginFailed, protocol.MsgAccountLoggedIn))
		return
	}

	s.log().Info("logged in")
	s.Send(protocol.NewLoginSuccess(account))
	s.hub.sessions.BroadcastPlayerList()
}

func handleRegister(ctx context.Context, s *Session, env protocol.Envelope) {
	var req protocol.Credentials
	if !s.bind(env, &req) {
		return
	}

	_, err := s.hub.auth.Register(ctx, *req.Username, *req.Password)
	if err != nil {
		s.Send(protocol.NewText(protocol.TypeRegisterFailed, s.registerFailure(err)))
		return
	}
	s.Send(protocol.NewText(protocol.TypeRegisterSuccess, protocol.MsgRegistered))
}

func (s *Session) registerFailure(err error) string {
	switch {
	case errors.Is(err, auth.ErrUsernameExists):
		return protocol.MsgUsernameExists
	case errors.Is(err, auth.ErrUsernameRequired):
		return "Username is required"
	case errors.Is(err, auth.ErrUsernameTooLong):
		return fmt.Sprintf("Username must be at most %d characters", model.MaxUsernameLength)
	case errors.Is(err, auth.ErrUsernameReserved):
		return "Username is reserved"
	case errors.Is(err, auth.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", model.MinPasswordLength)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return fmt.Sprintf("Password must be at most %d bytes", model.MaxPasswordBytes)
	default:
		s.log().Error("registration failed", slog.String("error", err.Error()))
		return protocol.MsgServiceUnavailable
	}
}

func handleLogout(_ context.Context, s *Session, _ protocol.Envelope) {
	s.log().Info("logged out")
	s.disconnect()
}

// Lobby handlers

func handleGetPlayers(_ context.Context, s *Session, _ protocol.Envelope) {
	s.Send(protocol.NewPlayerList(s.hub.sessions.Players()))
}

func handleGetLeaderboard(ctx context.Context, s *Session, _ protocol.Envelope) {
	entries, err := s.hub.stats.Leaderboard(ctx)
	if err != nil {
		s.log().Error("failed to load leaderboard", slog.String("error", err.Error()))
		s.Send(protocol.NewError(protocol.MsgServiceUnavailable))
		return
	}
	s.Send(protocol.NewLeaderboard(entries))
}

func handleGetMatchHistory(ctx context.Context, s *Session, _ protocol.Envelope) {
	history, err := s.hub.stats.MatchHistory(ctx, s.AccountID())
	if err != nil {
		s.log().Error("failed to load match history", slog.String("error", err.Error()))
		s.Send(protocol.NewError(protocol.MsgServiceUnavailable))
		return
	}
	s.Send(protocol.NewMatchHistory(history))
}

func handleChallenge(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.ChallengeRequest
	if !s.bind(env, &req) {
		return
	}
	if s.InGame() {
		s.Send(protocol.NewError(protocol.MsgAlreadyInGame))
		return
	}

	target, ok := s.hub.sessions.Get(req.Target)
	if !ok || target == s || target.InGame() {
		s.Send(protocol.NewError(protocol.MsgPlayerNotAvailable))
		return
	}

	difficulty := model.ParseDifficulty(req.Difficulty)
	target.Send(protocol.NewChallengeReceived(s.Username(), difficulty))
	s.log().Info("challenge sent",
		slog.String("target", req.Target),
		slog.String("difficulty", string(difficulty)))
}

func handleAcceptChallenge(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.AcceptChallengeRequest
	if !s.bind(env, &req) {
		return
	}

	challenger, ok := s.hub.sessions.Get(req.Challenger)
	if !ok || !s.startGame(challenger, model.ParseDifficulty(req.Difficulty)) {
		s.Send(protocol.NewError(protocol.MsgCannotStartGame))
	}
}

func handleDeclineChallenge(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.DeclineChallengeRequest
	if !s.bind(env, &req) {
		return
	}
	if challenger, ok := s.hub.sessions.Get(req.Challenger); ok {
		challenger.Send(protocol.NewChallengeDeclined(s.Username()))
	}
}

func handleOpponentLeftLobby(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.LeftLobbyRequest
	if !s.bind(env, &req) {
		return
	}
	if opponent, ok := s.hub.sessions.Get(req.Opponent); ok && opponent != s {
		opponent.Send(protocol.NewOpponentLeftLobby(s.Username()))
	}
}

func handleRematch(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.RematchRequest
	if !s.bind(env, &req) {
		return
	}

	target, ok := s.hub.sessions.Get(req.Target)
	if !ok || target == s {
		s.Send(protocol.NewError(protocol.MsgPlayerNotFound))
		return
	}
	difficulty := model.ParseDifficulty(req.Difficulty)

	switch {
	case req.IsRequest:
		target.Send(protocol.NewRematchOffer(s.Username(), difficulty))
	case !req.Accept:
		target.Send(protocol.NewRematchAnswer(s.Username(), false))
	default:
		// The requester is player1 of the new room
		room := s.hub.rooms.New(difficulty, target, s)
		if !s.hub.sessions.ClaimPair(target, s, room) {
			s.Send(protocol.NewError(protocol.MsgRematchPlayerBusy))
			return
		}
		target.Send(protocol.NewRematchAnswer(s.Username(), true))
		s.hub.rooms.Start(room)
		s.hub.sessions.BroadcastPlayerList()
	}
}

// startGame seats challenger as player1 and s as player2 of a new room
func (s *Session) startGame(challenger *Session, difficulty model.Difficulty) bool {
	room := s.hub.rooms.New(difficulty, challenger, s)
	if !s.hub.sessions.ClaimPair(challenger, s, room) {
		return false
	}
	s.hub.rooms.Start(room)
	s.hub.sessions.BroadcastPlayerList()
	return true
}

// Game handlers

func handleCardFlip(_ context.Context, s *Session, env protocol.Envelope) {
	var req protocol.CardFlipRequest
	if !s.bind(env, &req) {
		return
	}

	room := s.currentRoom()
	if room == nil {
		s.log().Debug("flip outside a game ignored")
		return
	}

	if _, err := room.FlipCard(s, *req.Card1, *req.Card2); err != nil {
		s.log().Debug("flip rejected",
			slog.Int("card1", *req.Card1),
			slog.Int("card2", *req.Card2),
			slog.String("error", err.Error()))
		s.Send(protocol.NewError(protocol.MsgInvalidMove))
	}
}

func handleQuitGame(_ context.Context, s *Session, _ protocol.Envelope) {
	room := s.currentRoom()
	if room == nil {
		return
	}
	room.Quit(s)
	s.ReleaseRoom(room)
}
