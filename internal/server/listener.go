package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mcoot/memorymatch/internal/session"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener accepts TCP connections and runs a line-framed session on each
type Listener struct {
	ln     net.Listener
	hub    *session.Hub
	conns  *tracker
	logger *slog.Logger
}

// Listen binds addr and returns a Listener that is not yet accepting
func Listen(addr string, hub *session.Hub, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return NewListener(ln, hub, logger), nil
}

// NewListener wraps an already bound listener
func NewListener(ln net.Listener, hub *session.Hub, logger *slog.Logger) *Listener {
	return &Listener{
		ln:     ln,
		hub:    hub,
		conns:  newTracker(),
		logger: logger.With(slog.String("component", "tcp")),
	}
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or Close is called.
// It returns nil on a clean stop.
func (l *Listener) Serve(ctx context.Context) error {
	l.logger.Info("accepting connections", slog.String("addr", l.ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			l.logger.Warn("accept failed, retrying",
				slog.Any("error", err),
				slog.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		if !l.conns.add(conn) {
			_ = conn.Close()
			return nil
		}
		go l.handle(ctx, conn)
	}
}

// Close stops accepting, closes every live connection and waits for their sessions to end
func (l *Listener) Close() error {
	err := l.ln.Close()
	if l.conns.closeAll() {
		l.logger.Info("listener stopped")
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Active returns the number of live connections
func (l *Listener) Active() int {
	return l.conns.len()
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer l.conns.done(conn)

	l.logger.Debug("connection accepted", slog.String("remote", conn.RemoteAddr().String()))
	l.hub.Serve(ctx, session.NewLineConn(conn, l.hub.Config().WriteTimeout))
}
