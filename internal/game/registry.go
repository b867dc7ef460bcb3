package game

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/memorymatch/internal/dependencies/clock"
	"github.com/mcoot/memorymatch/internal/dependencies/random"
	"github.com/mcoot/memorymatch/internal/model"
)

// Registry creates rooms and tracks the ones in progress
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	clock    clock.Clock
	random   random.Random
	recorder Recorder
	newID    func() string
	onEnded  func(*Room)
	logger   *slog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithIDFunc overrides room id generation
func WithIDFunc(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// WithOnEnded registers a callback run after a room ends and is untracked.
// It runs with the room lock held and must not call back into the room.
func WithOnEnded(fn func(*Room)) Option {
	return func(r *Registry) {
		r.onEnded = fn
	}
}

// NewRegistry creates a new room Registry
func NewRegistry(clock clock.Clock, random random.Random, recorder Recorder, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		clock:    clock,
		random:   random,
		recorder: recorder,
		newID:    uuid.NewString,
		logger:   logger.With(slog.String("component", "rooms")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New builds a room with a freshly shuffled deck. The room is not tracked
// or started until passed to Start.
func (r *Registry) New(difficulty model.Difficulty, player1, player2 Participant) *Room {
	values := NewDeck(difficulty.CardCount(), r.random)
	return newRoom(r.newID(), difficulty, player1, player2, values, roomDeps{
		clock:    r.clock,
		recorder: r.recorder,
		onClose:  r.remove,
		logger:   r.logger,
	})
}

// Start tracks the room and starts the match. A room that ended before
// Start, because a participant left while it was being set up, is not tracked.
func (r *Registry) Start(room *Room) {
	r.mu.Lock()
	r.rooms[room.ID()] = room
	r.mu.Unlock()

	// ended is set before onClose runs, so a quit whose remove came before
	// the insert above is always seen here
	if room.Ended() {
		r.mu.Lock()
		if r.rooms[room.ID()] == room {
			delete(r.rooms, room.ID())
		}
		r.mu.Unlock()
		return
	}

	room.Start()
}

// Get returns a tracked room
func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Count returns the number of rooms in progress
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// List returns a snapshot of every room in progress, oldest first
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	// Snapshot takes the room lock; never hold mu across it
	snapshots := make([]Snapshot, 0, len(rooms))
	for _, room := range rooms {
		snapshots = append(snapshots, room.Snapshot())
	}
	slices.SortFunc(snapshots, func(a, b Snapshot) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return snapshots
}

func (r *Registry) remove(room *Room) {
	r.mu.Lock()
	if r.rooms[room.ID()] == room {
		delete(r.rooms, room.ID())
	}
	r.mu.Unlock()

	if r.onEnded != nil {
		r.onEnded(room)
	}
}
