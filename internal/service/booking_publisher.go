// Package service holds outbound integrations used by the HTTP handlers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/queue"
)

// BookingPublisher publishes booking events to RabbitMQ.  Each publish
// opens its own connection; confirmations are rare enough that pooling is
// not worth the reconnect handling.
type BookingPublisher struct {
	url    string
	logger *zap.Logger
}

func NewBookingPublisher(url string, logger *zap.Logger) *BookingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingPublisher{url: url, logger: logger}
}

// PublishBookingConfirmed sends event as a persistent JSON message to the
// durable booking.confirmed queue.  Errors are logged and returned; callers
// treat them as non-fatal.
func (p *BookingPublisher) PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error {
	if err := p.publish(ctx, event); err != nil {
		p.logger.Warn("publish booking.confirmed failed", zap.Uint64("booking_id", event.BookingID), zap.Error(err))
		return err
	}
	return nil
}

func (p *BookingPublisher) publish(ctx context.Context, event queue.BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.BookingConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx,
		"",                          // default exchange
		queue.BookingConfirmedQueue, // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
