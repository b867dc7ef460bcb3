package game

import (
	"context"
	"sync"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/services/stats"
)

type fakePlayer struct {
	name string
	id   model.AccountID

	mu       sync.Mutex
	messages []any
	released []*Room
}

func newFakePlayer(name string, id model.AccountID) *fakePlayer {
	return &fakePlayer{name: name, id: id}
}

func (p *fakePlayer) Username() string           { return p.name }
func (p *fakePlayer) AccountID() model.AccountID { return p.id }

func (p *fakePlayer) Send(msg any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *fakePlayer) ReleaseRoom(room *Room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, room)
}

func (p *fakePlayer) sent() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.messages...)
}

func (p *fakePlayer) releasedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.released)
}

func (p *fakePlayer) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
}

func (p *fakePlayer) gameEnds() []protocol.GameEnd {
	var ends []protocol.GameEnd
	for _, msg := range p.sent() {
		if end, ok := msg.(protocol.GameEnd); ok {
			ends = append(ends, end)
		}
	}
	return ends
}

func (p *fakePlayer) gameStart() (protocol.GameStart, bool) {
	for _, msg := range p.sent() {
		if start, ok := msg.(protocol.GameStart); ok {
			return start, true
		}
	}
	return protocol.GameStart{}, false
}

type quitRecord struct {
	result  stats.MatchResult
	quitter model.AccountID
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []stats.MatchResult
	quits   []quitRecord
}

func (r *fakeRecorder) RecordResult(_ context.Context, result stats.MatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *fakeRecorder) RecordQuit(_ context.Context, result stats.MatchResult, quitter model.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quits = append(r.quits, quitRecord{result: result, quitter: quitter})
}

func (r *fakeRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) + len(r.quits)
}
