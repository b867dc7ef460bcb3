package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
)

// State is the protocol state of a session
type State int

const (
	StateConnected State = iota
	StateLobby
	StateInGame
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLobby:
		return "lobby"
	case StateInGame:
		return "in_game"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one live connection and its protocol state.
// Other goroutines interact with it only through Send and the claim/release methods.
type Session struct {
	id   string
	conn Conn
	hub  *Hub

	send       chan []byte
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	state    State
	username string
	account  model.AccountID
	room     *game.Room
	logger   *slog.Logger
	// logger before a username is attached
	connLogger *slog.Logger
}

// Ensure Session can sit in a room
var _ game.Participant = (*Session)(nil)

func newSession(id string, conn Conn, hub *Hub) *Session {
	logger := hub.logger.With(
		slog.String("session_id", id),
		slog.String("remote_addr", conn.RemoteAddr()))

	return &Session{
		id:         id,
		conn:       conn,
		hub:        hub,
		send:       make(chan []byte, hub.cfg.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		state:      StateConnected,
		logger:     logger,
		connLogger: logger,
	}
}

// ID returns the short id used in logs
func (s *Session) ID() string {
	return s.id
}

// Username returns the authenticated username, or "" before login
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// AccountID returns the authenticated account id, or 0 before login
func (s *Session) AccountID() model.AccountID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// State returns the current protocol state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InGame reports whether the session is seated in a room
func (s *Session) InGame() bool {
	return s.State() == StateInGame
}

// Authenticated reports whether the session has logged in and not disconnected
func (s *Session) Authenticated() bool {
	state := s.State()
	return state == StateLobby || state == StateInGame
}

func (s *Session) currentRoom() *game.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) log() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// Send encodes msg and queues it for the writer. A full queue drops the message.
func (s *Session) Send(msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log().Error("failed to encode message", slog.String("error", err.Error()))
		return
	}
	s.sendEncoded(data)
}

func (s *Session) sendEncoded(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- data:
	default:
		s.log().Warn("send queue full, dropping message",
			slog.String("type", string(protocol.TypeOf(data))))
	}
}

// ReleaseRoom returns the session to the lobby if it is still bound to room
func (s *Session) ReleaseRoom(room *game.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != room {
		return
	}
	s.room = nil
	if s.state == StateInGame {
		s.state = StateLobby
	}
}

func (s *Session) claimable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateLobby && s.room == nil
}

func (s *Session) claim(room *game.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLobby || s.room != nil {
		return false
	}
	s.room = room
	s.state = StateInGame
	return true
}

// authenticate binds the account to the session and moves it to the lobby
func (s *Session) authenticate(account *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = account.Username
	s.account = account.ID
	s.state = StateLobby
	s.logger = s.connLogger.With(slog.String("username", account.Username))
}

func (s *Session) unauthenticate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.account = 0
	s.state = StateConnected
	s.logger = s.connLogger
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// serve runs the read loop until the connection fails, ctx is cancelled or
// the client logs out, then tears the session down
func (s *Session) serve(ctx context.Context) {
	s.log().Info("session opened")

	go s.writeLoop()
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	for !s.closed() {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			break
		}
		s.handleMessage(ctx, data)
	}

	s.disconnect()
	<-s.writerDone
	_ = s.conn.Close()
	s.log().Info("session closed")
}

func (s *Session) logReadError(err error) {
	switch {
	case s.closed():
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.log().Debug("connection closed by peer")
	case errors.Is(err, ErrMessageTooLarge):
		s.log().Warn("inbound message too large, closing connection")
	default:
		s.log().Info("read failed", slog.String("error", err.Error()))
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(data); err != nil {
				s.log().Info("write failed", slog.String("error", err.Error()))
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush writes whatever is still queued when the session closes
func (s *Session) flush() {
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// disconnect runs the teardown exactly once: an active room treats it as a
// quit, the session leaves the registry and everyone gets the new player list
func (s *Session) disconnect() {
	s.closeOnce.Do(func() {
		// Leaving Lobby first keeps the session from being claimed again
		s.mu.Lock()
		room := s.room
		username := s.username
		wasAuthenticated := s.state == StateLobby || s.state == StateInGame
		s.state = StateDisconnected
		s.mu.Unlock()

		if room != nil {
			room.Quit(s)
			s.ReleaseRoom(room)
		}

		if wasAuthenticated && s.hub.sessions.Remove(username, s) {
			s.hub.sessions.BroadcastPlayerList()
		}
		close(s.done)
	})
}
