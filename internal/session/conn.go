package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mcoot/memorymatch/internal/protocol"
)

// Conn is a framed bidirectional message stream. ReadMessage is only called
// from one goroutine; WriteMessage may be called concurrently with it.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() string
}

// ErrMessageTooLarge is returned when an inbound line exceeds protocol.MaxMessageSize
var ErrMessageTooLarge = errors.New("message too large")

// LineConn frames messages as newline-terminated lines over a stream
type LineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration

	wmu sync.Mutex
}

// NewLineConn wraps a stream connection
func NewLineConn(conn net.Conn, writeTimeout time.Duration) *LineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), protocol.MaxMessageSize)
	return &LineConn{
		conn:         conn,
		scanner:      scanner,
		writeTimeout: writeTimeout,
	}
}

// ReadMessage returns the next line without its terminator
func (c *LineConn) ReadMessage() ([]byte, error) {
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		switch {
		case err == nil:
			return nil, io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			return nil, ErrMessageTooLarge
		default:
			return nil, err
		}
	}
	line := c.scanner.Bytes()
	msg := make([]byte, len(line))
	copy(msg, line)
	return msg, nil
}

// WriteMessage writes data followed by a newline
func (c *LineConn) WriteMessage(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

// Close closes the underlying connection
func (c *LineConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address
func (c *LineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
