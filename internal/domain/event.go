package domain

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentEvent — событие изменения enrollment.
// Публикуется в RabbitMQ с routing key "enrollment.<outcome>".
type EnrollmentEvent struct {
	EnrollmentID uuid.UUID        `json:"enrollment_id"`
	SequenceID   uuid.UUID        `json:"sequence_id"`
	StepIndex    int              `json:"step_index"`
	ActionType   ActionType       `json:"action_type,omitempty"`
	Outcome      Outcome          `json:"outcome"`
	Status       EnrollmentStatus `json:"status"`
	Detail       string           `json:"detail,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// NewEnrollmentEvent строит событие по записи истории.
func NewEnrollmentEvent(e *Enrollment, entry StepHistoryEntry) EnrollmentEvent {
	return EnrollmentEvent{
		EnrollmentID: e.ID,
		SequenceID:   e.SequenceID,
		StepIndex:    entry.StepIndex,
		ActionType:   entry.ActionType,
		Outcome:      entry.Outcome,
		Status:       e.Status,
		Detail:       entry.Detail,
		OccurredAt:   entry.ExecutedAt,
	}
}

// ReminderEvent — событие отправки напоминания.
type ReminderEvent struct {
	EntityID   uuid.UUID    `json:"entity_id"`
	EntityType EntityType   `json:"entity_type"`
	Kind       ReminderKind `json:"reminder_kind"`
	Recipients []string     `json:"recipients"`
	SentAt     time.Time    `json:"sent_at"`
}
