package channel

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
)

// ErrDelivery — канал вернул ошибку доставки.
var ErrDelivery = errors.New("delivery failed")

// Email — канал отправки писем.
type Email interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMS — канал отправки SMS.
type SMS interface {
	Send(ctx context.Context, to, body string) error
}

// Notification — канал уведомлений внутри приложения.
type Notification interface {
	Create(ctx context.Context, userID uuid.UUID, kind, title, body string) error
}

// Webhook — канал исходящих webhook-запросов.
//
// Возвращает HTTP-код ответа. Ответ не 2xx — это ошибка,
// при этом код всё равно возвращается.
type Webhook interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error)
}

// Tasks — внутренние задачи для сотрудников.
type Tasks interface {
	CreateFollowUp(ctx context.Context, task *domain.FollowUpTask) error
}

// Set — набор сконфигурированных каналов. Любое поле может быть nil:
// канал не настроен.
type Set struct {
	Email        Email
	SMS          SMS
	Notification Notification
	Webhook      Webhook
	Tasks        Tasks
}
