// Package service publishes domain events to RabbitMQ. Errors are logged
// and returned so callers can ignore them without interrupting the main
// flow.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/cinema-ticket-cart/internal/queue"
)

// Publisher sends booking events to the broker at URL. Each call opens its
// own connection; publishing is rare enough that pooling is not needed.
type Publisher struct {
	URL string
	Log *log.Logger
}

func NewPublisher(url string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New("queue")
	}
	return &Publisher{URL: url, Log: logger}
}

// PublishBookingConfirmed publishes event to the durable booking.confirmed
// queue as a persistent message.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event q.BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.Log.Errorf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	return p.publish(ctx, q.BookingQueue, body)
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		p.Log.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.Log.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
