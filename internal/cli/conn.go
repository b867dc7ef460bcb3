package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
)

// ServerError is an ERROR, LOGIN_FAILED or REGISTER_FAILED reply
type ServerError struct {
	Type    protocol.MessageType
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// failureTypes are replies that carry a Text body and end a request
var failureTypes = []protocol.MessageType{
	protocol.TypeError,
	protocol.TypeLoginFailed,
	protocol.TypeRegisterFailed,
}

// Client speaks the line protocol to a game server
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration

	wmu sync.Mutex
}

// Dial connects to the game server at addr. timeout bounds the dial and
// every later read and write; zero disables it.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewConnClient(conn, timeout), nil
}

// NewConnClient wraps an established connection
func NewConnClient(conn net.Conn, timeout time.Duration) *Client {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), protocol.MaxMessageSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		timeout: timeout,
	}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send encodes msg as one line
func (c *Client) Send(msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw writes data followed by a newline
func (c *Client) SendRaw(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(append(slices.Clip(data), '\n'))
	return err
}

// ReadLine returns the next raw line from the server
func (c *Client) ReadLine() ([]byte, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return slices.Clone(c.scanner.Bytes()), nil
}

// Next returns the next decoded server message
func (c *Client) Next() (protocol.Envelope, error) {
	line, err := c.ReadLine()
	if err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.Decode(line)
}

// Await skips messages until one of want arrives. A failure reply that is
// not itself wanted is returned as a *ServerError.
func (c *Client) Await(want ...protocol.MessageType) (protocol.Envelope, error) {
	for {
		env, err := c.Next()
		if err != nil {
			return protocol.Envelope{}, err
		}
		if slices.Contains(want, env.Type) {
			return env, nil
		}
		if slices.Contains(failureTypes, env.Type) {
			var text protocol.Text
			if err := json.Unmarshal(env.Raw, &text); err != nil {
				return protocol.Envelope{}, err
			}
			return protocol.Envelope{}, &ServerError{Type: env.Type, Message: text.Message}
		}
	}
}

// request sends msg and decodes the reply of type want into out
func (c *Client) request(msg map[string]any, want protocol.MessageType, out any) error {
	if err := c.Send(msg); err != nil {
		return err
	}
	env, err := c.Await(want)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Raw, out)
}

// Login authenticates the connection
func (c *Client) Login(username, password string) (protocol.LoginSuccess, error) {
	var reply protocol.LoginSuccess
	err := c.request(map[string]any{
		"type":     protocol.TypeLogin,
		"username": username,
		"password": password,
	}, protocol.TypeLoginSuccess, &reply)
	return reply, err
}

// Register creates an account without logging in
func (c *Client) Register(username, password string) error {
	return c.request(map[string]any{
		"type":     protocol.TypeRegister,
		"username": username,
		"password": password,
	}, protocol.TypeRegisterSuccess, nil)
}

// Players returns the online players
func (c *Client) Players() ([]protocol.PlayerInfo, error) {
	var reply protocol.PlayerList
	err := c.request(map[string]any{"type": protocol.TypeGetPlayers}, protocol.TypePlayerList, &reply)
	return reply.Players, err
}

// Leaderboard returns the top players
func (c *Client) Leaderboard() ([]model.LeaderboardEntry, error) {
	var reply protocol.Leaderboard
	err := c.request(map[string]any{"type": protocol.TypeGetLeaderboard}, protocol.TypeLeaderboard, &reply)
	return reply.Data, err
}

// MatchHistory returns the logged-in player's recent matches
func (c *Client) MatchHistory() ([]model.MatchHistoryEntry, error) {
	var reply protocol.MatchHistory
	err := c.request(map[string]any{"type": protocol.TypeGetMatchHistory}, protocol.TypeMatchHistory, &reply)
	return reply.Data, err
}

// Logout ends the session; the server closes the connection
func (c *Client) Logout() error {
	err := c.Send(map[string]any{"type": protocol.TypeLogout})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
