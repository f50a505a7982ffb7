package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/repo"
)

// Enroller записывает контакт в последовательность.
type Enroller interface {
	Enroll(ctx context.Context, req enrollment.EnrollRequest) (*domain.Enrollment, error)
}

// NewEnrollHandler возвращает обработчик очереди engage.enrollments.
//
// Повторный запрос на уже записанный контакт подтверждается без ошибки.
// Запросы, которые не пройдут никогда (нет последовательности, нет
// контакта, последовательность выключена), уходят в DLQ.
func NewEnrollHandler(e Enroller, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeEnrollRequest {
			return fmt.Errorf("%w: unexpected message type %q", ErrPermanent, msg.Type)
		}

		req, err := DecodePayload[enrollment.EnrollRequest](msg)
		if err != nil {
			return err
		}

		en, err := e.Enroll(ctx, req)
		switch {
		case err == nil:
			logger.Info("enrolled from queue", "message_id", msg.ID, "enrollment_id", en.ID, "sequence_id", req.SequenceID)
			return nil
		case errors.Is(err, enrollment.ErrAlreadyEnrolled):
			logger.Info("contact already enrolled, dropping request", "message_id", msg.ID, "sequence_id", req.SequenceID)
			return nil
		case errors.Is(err, repo.ErrNotFound),
			errors.Is(err, enrollment.ErrSequenceInactive),
			errors.Is(err, enrollment.ErrSequenceInvalid),
			errors.Is(err, enrollment.ErrNoContact):
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		default:
			return err
		}
	}
}
