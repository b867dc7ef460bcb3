package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/session"
)

const (
	// pongWait is how long a peer may stay silent before the read fails
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// WebSocketHandler upgrades HTTP requests and runs a session per socket.
// Each text frame carries exactly one protocol message.
type WebSocketHandler struct {
	hub      *session.Hub
	upgrader websocket.Upgrader
	conns    *tracker
	logger   *slog.Logger
}

// NewWebSocketHandler creates a WebSocketHandler
func NewWebSocketHandler(hub *session.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns:  newTracker(),
		logger: logger.With(slog.String("component", "websocket")),
	}
}

// ServeHTTP blocks for the lifetime of the socket
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	conn := newWSConn(ws, h.hub.Config().WriteTimeout)
	if !h.conns.add(conn) {
		_ = conn.Close()
		return
	}
	defer h.conns.done(conn)

	h.logger.Debug("websocket connected", slog.String("remote", conn.RemoteAddr()))
	// Hijacked connections outlive the request context
	h.hub.Serve(context.WithoutCancel(r.Context()), conn)
}

// Close disconnects every open socket and waits for the sessions to end
func (h *WebSocketHandler) Close() error {
	h.conns.closeAll()
	return nil
}

// Active returns the number of open sockets
func (h *WebSocketHandler) Active() int {
	return h.conns.len()
}

// wsConn adapts a websocket to session.Conn
type wsConn struct {
	ws        *websocket.Conn
	writeWait time.Duration

	wmu       sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	c := &wsConn{
		ws:        ws,
		writeWait: writeTimeout,
		done:      make(chan struct{}),
	}

	ws.SetReadLimit(protocol.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				return nil, session.ErrMessageTooLarge
			}
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
