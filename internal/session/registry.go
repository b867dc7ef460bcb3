package session

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
)

// Registry tracks the authenticated sessions by username
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// claimMu serialises every transition into a room
	claimMu sync.Mutex

	logger *slog.Logger
}

// NewRegistry creates an empty session Registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With(slog.String("component", "sessions")),
	}
}

// Add registers s under its username unless that username is already online
func (r *Registry) Add(s *Session) error {
	username := s.Username()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[username]; exists {
		return model.ErrAlreadyOnline
	}
	r.sessions[username] = s
	r.logger.Debug("session registered",
		slog.String("username", username),
		slog.Int("online", len(r.sessions)))
	return nil
}

// Remove unregisters username only if it still maps to s
func (r *Registry) Remove(username string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[username] != s {
		return false
	}
	delete(r.sessions, username)
	return true
}

// Get returns the online session for username
func (r *Registry) Get(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Count returns the number of online sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns the online sessions sorted by username
func (r *Registry) List() []*Session {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Session) int {
		return strings.Compare(a.Username(), b.Username())
	})
	return list
}

// Players returns the online players sorted by username
func (r *Registry) Players() []protocol.PlayerInfo {
	list := r.List()
	players := make([]protocol.PlayerInfo, 0, len(list))
	for _, s := range list {
		players = append(players, protocol.PlayerInfo{
			Username: s.Username(),
			InGame:   s.InGame(),
		})
	}
	return players
}

// Broadcast sends msg to every online session
func (r *Registry) Broadcast(msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("failed to encode broadcast", slog.String("error", err.Error()))
		return
	}
	for _, s := range r.List() {
		s.sendEncoded(data)
	}
}

// BroadcastPlayerList sends the current PLAYER_LIST to every online session
func (r *Registry) BroadcastPlayerList() {
	r.Broadcast(protocol.NewPlayerList(r.Players()))
}

// ClaimPair seats a and b in room if both are in the lobby. Either both
// sessions are claimed or neither is.
func (r *Registry) ClaimPair(a, b *Session, room *game.Room) bool {
	if a == b {
		return false
	}

	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	if !a.claimable() || !b.claimable() {
		return false
	}
	if !a.claim(room) {
		return false
	}
	if !b.claim(room) {
		a.ReleaseRoom(room)
		return false
	}
	return true
}
