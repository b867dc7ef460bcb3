package server

import (
	"io"
	"sync"
)

// tracker records live connections so shutdown can close them and wait
type tracker struct {
	mu     sync.Mutex
	conns  map[io.Closer]struct{}
	closed bool
	wg     sync.WaitGroup
}

func newTracker() *tracker {
	return &tracker{conns: make(map[io.Closer]struct{})}
}

// add registers c, or reports false once closeAll has run
func (t *tracker) add(c io.Closer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[c] = struct{}{}
	t.wg.Add(1)
	return true
}

func (t *tracker) done(c io.Closer) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
	t.wg.Done()
}

func (t *tracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// closeAll closes every tracked connection and waits for each to be released.
// It reports whether this call was the first.
func (t *tracker) closeAll() bool {
	t.mu.Lock()
	first := !t.closed
	t.closed = true
	for c := range t.conns {
		_ = c.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()
	return first
}
