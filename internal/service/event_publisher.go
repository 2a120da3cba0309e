// Package service holds outbound integrations used by the request
// handlers.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/avanzo/foodshare/internal/queue"
)

// dialTimeout bounds the TCP connect and AMQP handshake, which run in the
// request path.
const dialTimeout = 2 * time.Second

// EventPublisher publishes reservation events to RabbitMQ.  A nil
// *EventPublisher is valid and drops every event, which is how a
// deployment without a broker runs.
type EventPublisher struct {
	url string
	log *zap.Logger
}

// NewEventPublisher returns nil when url is empty.
func NewEventPublisher(url string, log *zap.Logger) *EventPublisher {
	if url == "" {
		return nil
	}
	return &EventPublisher{url: url, log: log}
}

// Publish sends ev as a persistent message to the reservation queue.
// Errors are logged and returned so callers may ignore them without
// interrupting the request.
func (p *EventPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	if p == nil {
		return nil
	}
	err := p.publish(ctx, ev)
	if err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("event", ev.Type), zap.Error(err))
	}
	return err
}

func (p *EventPublisher) publish(ctx context.Context, ev queue.ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.ReservationQueue, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, "", queue.ReservationQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
