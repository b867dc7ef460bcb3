package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject finished matches are published on
const DefaultSubject = "memorymatch.match.finished"

// Config holds NATS publisher configuration
type Config struct {
	URL     string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DefaultConfig returns a config with publishing disabled
func DefaultConfig() Config {
	return Config{
		Subject: DefaultSubject,
	}
}

// Enabled reports whether a NATS URL is configured
func (c Config) Enabled() bool {
	return c.URL != ""
}

// natsConn is the subset of *nats.Conn the publisher uses
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events as JSON on a core NATS subject
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to the configured server
func NewNATSPublisher(cfg Config, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With(slog.String("component", "events"))

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("memorymatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return newNATSPublisher(conn, cfg.Subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

// PublishMatchFinished implements Publisher
func (p *NATSPublisher) PublishMatchFinished(_ context.Context, event MatchFinished) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.logger.Debug("match event published", slog.String("room_id", event.RoomID))
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
