package channel

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// NewLimiter создаёт ограничитель на perSec отправок в секунду.
// perSec <= 0 — без ограничения (nil).
func NewLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// ThrottleEmail ограничивает скорость отправки писем.
func ThrottleEmail(inner Email, l *rate.Limiter) Email {
	if inner == nil || l == nil {
		return inner
	}
	return &throttledEmail{inner: inner, limiter: l}
}

// ThrottleSMS ограничивает скорость отправки SMS.
func ThrottleSMS(inner SMS, l *rate.Limiter) SMS {
	if inner == nil || l == nil {
		return inner
	}
	return &throttledSMS{inner: inner, limiter: l}
}

// ThrottleNotification ограничивает скорость создания уведомлений.
func ThrottleNotification(inner Notification, l *rate.Limiter) Notification {
	if inner == nil || l == nil {
		return inner
	}
	return &throttledNotification{inner: inner, limiter: l}
}

type throttledEmail struct {
	inner   Email
	limiter *rate.Limiter
}

func (t *throttledEmail) Send(ctx context.Context, to, subject, html string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.inner.Send(ctx, to, subject, html)
}

type throttledSMS struct {
	inner   SMS
	limiter *rate.Limiter
}

func (t *throttledSMS) Send(ctx context.Context, to, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.inner.Send(ctx, to, body)
}

type throttledNotification struct {
	inner   Notification
	limiter *rate.Limiter
}

func (t *throttledNotification) Create(ctx context.Context, userID uuid.UUID, kind, title, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.inner.Create(ctx, userID, kind, title, body)
}
