package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Engage/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEnrolled      MessageType = "enrollment.enrolled"
	MessageTypeStepExecuted  MessageType = "enrollment.step_executed"
	MessageTypeStepFailed    MessageType = "enrollment.step_failed"
	MessageTypeCompleted     MessageType = "enrollment.completed"
	MessageTypePaused        MessageType = "enrollment.paused"
	MessageTypeResumed       MessageType = "enrollment.resumed"
	MessageTypeCancelled     MessageType = "enrollment.cancelled"
	MessageTypeReminderSent  MessageType = "reminder.sent"
	MessageTypeEnrollRequest MessageType = "enroll.request"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(msgType MessageType, payload any, now time.Time) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now,
	}, nil
}

// EnrollmentMessageType возвращает тип события для исхода шага.
func EnrollmentMessageType(outcome domain.Outcome) MessageType {
	switch outcome {
	case domain.OutcomeEnrolled:
		return MessageTypeEnrolled
	case domain.OutcomeSuccess:
		return MessageTypeStepExecuted
	case domain.OutcomeFailed:
		return MessageTypeStepFailed
	case domain.OutcomeCompleted:
		return MessageTypeCompleted
	case domain.OutcomePaused:
		return MessageTypePaused
	case domain.OutcomeResumed:
		return MessageTypeResumed
	case domain.OutcomeCancelled:
		return MessageTypeCancelled
	default:
		return MessageType("enrollment." + string(outcome))
	}
}

// Publisher публикует события движка.
// Реализует enrollment.EventPublisher и reminder.EventPublisher.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger, now: time.Now}
}

// Publish публикует сообщение в exchange с ключом маршрутизации.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
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

// PublishJSON упаковывает payload и публикует его.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload, p.now())
	if err != nil {
		return err
	}
	return p.Publish(ctx, exchange, routingKey, msg)
}

// PublishEnrollmentEvent публикует переход enrollment в engage.events.
// Ключ маршрутизации совпадает с типом, например "enrollment.step_failed".
func (p *Publisher) PublishEnrollmentEvent(ctx context.Context, evt domain.EnrollmentEvent) error {
	msgType := EnrollmentMessageType(evt.Outcome)
	return p.PublishJSON(ctx, ExchangeEvents, RoutingKey(msgType), msgType, evt)
}

// PublishReminderSent публикует факт отправки напоминания.
func (p *Publisher) PublishReminderSent(ctx context.Context, evt domain.ReminderEvent) error {
	return p.PublishJSON(ctx, ExchangeEvents, RoutingKeyReminderSent, MessageTypeReminderSent, evt)
}

