// Package events publishes best-effort domain events (chat completions,
// data-version creation) to RabbitMQ for downstream consumers. Publishing
// never participates in request outcomes: errors are logged and dropped.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/datagent-dev/datagent/internal/common"
)

const (
	TypeChatCompleted      = "chat.completed"
	TypeDataVersionCreated = "dataversion.created"
)

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewPublisher connects and declares the event queue plus its retry/DLQ
// companions so consumers can nack without losing events.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Retry queue: message TTL -> dead-letter back to main queue.
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false).
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish emits one event. A nil publisher is a no-op, so callers don't
// guard for the events feature being disabled.
func (p *Publisher) Publish(ctx context.Context, eventType, sessionID, userID string, payload map[string]any) {
	if p == nil {
		return
	}

	id, err := common.NewULID()
	if err != nil {
		log.Printf("[Events] id generation failed: %v", err)
		return
	}

	body, err := json.Marshal(Event{
		ID:        id,
		Type:      eventType,
		SessionID: sessionID,
		UserID:    userID,
		Payload:   payload,
		At:        time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Events] marshal failed: %v", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	); err != nil {
		log.Printf("[Events] publish %s failed: %v", eventType, err)
	}
}
