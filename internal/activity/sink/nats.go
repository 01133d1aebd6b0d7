package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"proptoken/internal/activity/models"
)

// Conn is satisfied by *nats.Conn.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each event on <prefix>.<type>, e.g. activity.spv_verified.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "activity"
	}
	return &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Subject(t models.EventType) string {
	return p.prefix + "." + strings.ToLower(string(t))
}

func (p *NATSPublisher) Publish(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode activity event: %w", err)
	}
	return p.conn.Publish(p.Subject(ev.Type), data)
}
