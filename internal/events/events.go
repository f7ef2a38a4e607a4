// Package events announces store lifecycle changes on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event types
const (
	TypeStoreProvisioned = "store.provisioned"
	TypeStoreDeleted     = "store.deleted"
)

// StoreEvent is the message published for a store lifecycle change.
type StoreEvent struct {
	Type          string    `json:"type"`
	StoreID       uint      `json:"store_id"`
	ExternalID    int64     `json:"external_id,omitempty"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	MerchantID    uint      `json:"merchant_id,omitempty"`
	MerchantEmail string    `json:"merchant_email,omitempty"`
	Products      int       `json:"products"`
	Sliders       int       `json:"sliders"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher sends store events.
type Publisher interface {
	Publish(ctx context.Context, e StoreEvent) error
	Close()
}

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes events as JSON on <prefix>.<type>.
type NATSPublisher struct {
	conn   conn
	prefix string
	log    *zap.Logger
}

// Connect dials NATS and returns a publisher.
func Connect(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("storefront"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return newNATSPublisher(nc, prefix, log), nil
}

func newNATSPublisher(c conn, prefix string, log *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, log: log}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, e StoreEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(e.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.log.Debug("Event published", zap.String("subject", subject), zap.String("slug", e.Slug))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("Failed to drain NATS connection", zap.Error(err))
	}
}

// NopPublisher drops every event. Used when no NATS URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, StoreEvent) error { return nil }
func (NopPublisher) Close()                                    {}
