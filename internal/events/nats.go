package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	ReconnectWait  time.Duration
	MaxReconnects  int // -1 = unlimited
	ConnectTimeout time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "solstice",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	def := DefaultNATSConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}

	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn.IsClosed() {
		return ErrClosed
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
