package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	// ExchangeEvents — события движка (topic). Подписчики сами
	// создают очереди и привязывают их по шаблону, например "enrollment.*".
	ExchangeEvents Exchange = "engage.events"

	// ExchangeRequests — запросы к движку от других сервисов.
	ExchangeRequests Exchange = "engage.requests"

	ExchangeDLQ Exchange = "engage.dlq"
)

// Queues.
const (
	QueueEnrollments    Queue = "engage.enrollments"
	QueueDLQEnrollments Queue = "engage.enrollments.dlq"
)

// Routing keys.
const (
	RoutingKeyEnroll         RoutingKey = "enroll"
	RoutingKeyDLQEnrollments RoutingKey = "enrollments"
	RoutingKeyReminderSent   RoutingKey = "reminder.sent"
)

// SetupTopology объявляет exchanges, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeEvents, amqp.ExchangeTopic},
			{ExchangeRequests, amqp.ExchangeDirect},
			{ExchangeDLQ, amqp.ExchangeDirect},
		}
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		queues := []struct {
			name Queue
			args amqp.Table
		}{
			// отклонённые запросы уходят в DLQ
			{QueueEnrollments, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQEnrollments),
			}},
			{QueueDLQEnrollments, nil},
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{
			{QueueEnrollments, RoutingKeyEnroll, ExchangeRequests},
			{QueueDLQEnrollments, RoutingKeyDLQEnrollments, ExchangeDLQ},
		}
		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
