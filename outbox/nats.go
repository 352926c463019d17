package outbox

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// заголовки исходящих сообщений
const (
	headerEventID = "Outbox-Event-Id"
	headerKey     = "Outbox-Key"
)

// Compile-time check
var _ Publisher = (*NATSPublisher)(nil)

// NATSPublisher публикует события outbox в NATS. Subject собирается из
// префикса и topic события: prefix "sessionkit" + topic "transfers.completed"
// дают "sessionkit.transfers.completed".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher создаёт паблишер поверх установленного соединения.
func NewNATSPublisher(nc *nats.Conn, subjectPrefix string) (*NATSPublisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("outbox: nats connection must not be nil")
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix}, nil
}

// Publish реализует Publisher. Flush гарантирует, что сообщение ушло на
// сервер до того, как Relay пометит событие опубликованным.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	msg := &nats.Msg{
		Subject: p.subject(event.Topic),
		Data:    event.Payload,
		Header: nats.Header{
			headerEventID: []string{event.ID.String()},
			headerKey:     []string{event.Key},
		},
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event %s: %w", event.ID, err)
	}
	return nil
}

func (p *NATSPublisher) subject(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}
