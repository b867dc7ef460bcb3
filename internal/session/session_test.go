package session

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/testutil"
)

func TestSendDropsWhenQueueFull(t *testing.T) {
	f := newRegistryFixture()
	logger, logs := testutil.CaptureLogger()
	f.hub.cfg.SendBuffer = 1
	f.hub.logger = logger
	s := newSession("s1", newPipeConn(), f.hub)

	s.Send(protocol.NewError("first"))
	s.Send(protocol.NewError("second"))

	require.Len(t, s.send, 1)
	assert.Contains(t, string(<-s.send), "first")
	assert.Contains(t, logs.String(), "send queue full")
	assert.Contains(t, logs.String(), `"session_id":"s1"`)
}

func TestLoggerCarriesOnlyCurrentUsername(t *testing.T) {
	f := newRegistryFixture()
	logger, logs := testutil.CaptureLogger()
	f.hub.logger = logger
	s := newSession("s1", newPipeConn(), f.hub)

	s.authenticate(&model.Account{ID: 1, Username: "alice"})
	s.unauthenticate()
	s.log().Info("signed out")
	s.authenticate(&model.Account{ID: 2, Username: "bob"})
	s.log().Info("signed in")

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], `"username"`)
	assert.Equal(t, 1, strings.Count(lines[1], `"username"`))
	assert.Contains(t, lines[1], `"username":"bob"`)
	assert.NotContains(t, lines[1], "alice")
}

func TestSendAfterDisconnectIsDiscarded(t *testing.T) {
	f := newRegistryFixture()
	s := newSession("s1", newPipeConn(), f.hub)
	s.disconnect()

	s.Send(protocol.NewError("late"))
	assert.Empty(t, s.send)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestDisconnectRunsOnce(t *testing.T) {
	f := newRegistryFixture()
	s := f.loggedIn("alice", 1)
	require.NoError(t, f.sessions.Add(s))

	s.disconnect()
	s.disconnect()

	assert.Zero(t, f.sessions.Count())
}

func TestDisconnectedSessionCannotBeClaimed(t *testing.T) {
	f := newRegistryFixture()
	alice := f.loggedIn("alice", 1)
	bob := f.loggedIn("bob", 2)
	bob.disconnect()

	room := f.rooms.New(model.DifficultyEasy, alice, bob)
	assert.False(t, f.sessions.ClaimPair(alice, bob, room))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "lobby", StateLobby.String())
	assert.Equal(t, "in_game", StateInGame.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}

// LineConn

func TestLineConnRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewLineConn(server, time.Second)
	defer conn.Close()

	go func() {
		_, _ = client.Write([]byte("{\"type\":\"GET_PLAYERS\"}\n{\"type\":\"LOGOUT\"}\n"))
	}()

	first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"GET_PLAYERS"}`, string(first))
	second, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"LOGOUT"}`, string(second))

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		received <- string(buf[:n])
	}()
	require.NoError(t, conn.WriteMessage([]byte(`{"type":"ERROR"}`)))
	assert.Equal(t, "{\"type\":\"ERROR\"}\n", <-received)
}

func TestLineConnRejectsOversizedLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewLineConn(server, time.Second)
	defer conn.Close()

	go func() {
		_, _ = client.Write([]byte(strings.Repeat("x", protocol.MaxMessageSize+1) + "\n"))
	}()

	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestLineConnEOF(t *testing.T) {
	server, client := net.Pipe()
	conn := NewLineConn(server, time.Second)
	defer conn.Close()

	require.NoError(t, client.Close())

	_, err := conn.ReadMessage()
	assert.Error(t, err)
}
