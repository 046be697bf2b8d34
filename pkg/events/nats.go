package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	Servers        []string
	SubjectPrefix  string
	Token          string
	ConnectTimeout time.Duration
}

// NATS publishes events as JSON on core NATS subjects.
type NATS struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect dials the configured servers.
func Connect(cfg NATSConfig, log *slog.Logger) (*NATS, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "narration"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}

	options := []nats.Option{
		nats.Name("go-narrate"),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return &NATS{conn: conn, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Subject returns the subject an event type is published on.
func (n *NATS) Subject(eventType string) string {
	return n.prefix + "." + eventType
}

func (n *NATS) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(evt.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Healthy reports whether the connection is up.
func (n *NATS) Healthy() bool {
	return n != nil && n.conn != nil && n.conn.Status() == nats.CONNECTED
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() {
	if n == nil {
		return
	}
	n.log.Info("closing NATS connection")
	n.conn.Drain()
	n.conn.Close()
}

var _ Publisher = (*NATS)(nil)
