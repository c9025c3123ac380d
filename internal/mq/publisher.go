package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeSnapshot MessageType = "run.snapshot"
	MessageTypeCancel   MessageType = "run.cancel"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// SnapshotPayload — снимок состояния run.
type SnapshotPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	StepIndex  int       `json:"step_index"`
	Result     any       `json:"result"`
	IsComplete bool      `json:"is_complete"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// RoutingKey выбирает ключ маршрутизации по виду снимка.
func (p SnapshotPayload) RoutingKey() RoutingKey {
	switch {
	case p.Error != "":
		return RoutingKeySnapshotFailed
	case p.IsComplete:
		return RoutingKeySnapshotCompleted
	default:
		return RoutingKeySnapshotStep
	}
}

// CancelPayload — команда отмены run.
type CancelPayload struct {
	RunID  uuid.UUID `json:"run_id"`
	Reason string    `json:"reason"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, persistent bool) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: mode,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishSnapshot публикует снимок состояния run.
// Снимки переживают рестарт брокера: очередь аудита durable.
func (p *Publisher) PublishSnapshot(ctx context.Context, payload SnapshotPayload) error {
	msg := NewMessage(MessageTypeSnapshot, payload)
	return p.Publish(ctx, ExchangeSnapshots, payload.RoutingKey(), msg, true)
}

// PublishCancel рассылает команду отмены run всем процессам stagerun.
func (p *Publisher) PublishCancel(ctx context.Context, runID uuid.UUID, reason string) error {
	msg := NewMessage(MessageTypeCancel, CancelPayload{RunID: runID, Reason: reason})
	return p.Publish(ctx, ExchangeControl, RoutingKeyCancel, msg, false)
}
