package session

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/memorymatch/internal/protocol"
)

// pipeConn is an in-memory Conn; the test plays the client side
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *pipeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) RemoteAddr() string {
	return "pipe"
}

type message map[string]any

func (m message) str(key string) string {
	v, _ := m[key].(string)
	return v
}

func (m message) num(key string) int {
	v, _ := m[key].(float64)
	return int(v)
}

// testClient drives one session through a pipeConn
type testClient struct {
	t    *testing.T
	name string
	conn *pipeConn
	done chan struct{}
}

func startClient(t *testing.T, ctx context.Context, hub *Hub, name string) *testClient {
	c := &testClient{
		t:    t,
		name: name,
		conn: newPipeConn(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		hub.Serve(ctx, c.conn)
	}()
	return c
}

func (c *testClient) sendRaw(line string) {
	c.conn.in <- []byte(line)
}

func (c *testClient) send(msg map[string]any) {
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	c.conn.in <- data
}

// next returns the next outbound message
func (c *testClient) next() message {
	c.t.Helper()
	select {
	case data := <-c.conn.out:
		var msg message
		require.NoError(c.t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		c.t.Fatalf("%s: timed out waiting for a message", c.name)
		return nil
	}
}

// expect skips messages until one of type t arrives
func (c *testClient) expect(t protocol.MessageType) message {
	c.t.Helper()
	return c.expectWhere(t, func(message) bool { return true })
}

func (c *testClient) expectWhere(t protocol.MessageType, match func(message) bool) message {
	c.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.conn.out:
			var msg message
			require.NoError(c.t, json.Unmarshal(data, &msg))
			if protocol.MessageType(msg.str("type")) == t && match(msg) {
				return msg
			}
		case <-deadline:
			c.t.Fatalf("%s: timed out waiting for %s", c.name, t)
			return nil
		}
	}
}

func (c *testClient) expectError(text string) {
	c.t.Helper()
	msg := c.expect(protocol.TypeError)
	require.Equal(c.t, text, msg.str("message"))
}

// expectSilence fails if a message of type t arrives within a short window
func (c *testClient) expectSilence(t protocol.MessageType) {
	c.t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case data := <-c.conn.out:
			var msg message
			require.NoError(c.t, json.Unmarshal(data, &msg))
			require.NotEqual(c.t, string(t), msg.str("type"), "%s: unexpected message %v", c.name, msg)
		case <-deadline:
			return
		}
	}
}

func (c *testClient) waitClosed() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		c.t.Fatalf("%s: session did not close", c.name)
	}
}
