package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ContentChangedMessage tells downstream consumers (static rebuilds, search
// indexers) that a CMS entry changed.
type ContentChangedMessage struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	EntryID   int64     `json:"entryId"`
	Slug      string    `json:"slug,omitempty"`
	Action    string    `json:"action"`
}

type PublishingChannel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
	Close() error
}

type RabbitPublisher struct {
	conn       *amqp.Connection
	ch         PublishingChannel
	exchange   string
	routingKey string
	logger     *log.Logger
}

func NewRabbitPublisher(uri, exchange, routingKey string, logger *log.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel creation failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare failed: %w", err)
	}

	return &RabbitPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (p *RabbitPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishContentChanged publishes msg with the configured routing key. A zero
// Timestamp is filled with the current time.
func (p *RabbitPublisher) PublishContentChanged(ctx context.Context, msg ContentChangedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg.Event = "content.changed"
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
}
