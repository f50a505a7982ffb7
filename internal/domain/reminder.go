package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType — тип сущности, для которой отправляется напоминание.
type EntityType string

const (
	EntityAppointment EntityType = "appointment"
	EntityLead        EntityType = "lead"
	EntityInvoice     EntityType = "invoice"
)

// ReminderKind — метка, разделяющая независимые окна дедупликации
// одной и той же сущности.
type ReminderKind string

const (
	ReminderAppointment24h ReminderKind = "24h"
	ReminderAppointment1h  ReminderKind = "1h"
	ReminderLeadFollowUp   ReminderKind = "follow-up-48h"
	ReminderInvoiceOverdue ReminderKind = "overdue-weekly"
)

// ReminderLogEntry — запись об отправленном напоминании. Только добавляется.
type ReminderLogEntry struct {
	ID         uuid.UUID    `json:"id"`
	EntityID   uuid.UUID    `json:"entity_id"`
	EntityType EntityType   `json:"entity_type"`
	Kind       ReminderKind `json:"reminder_kind"`
	SentAt     time.Time    `json:"sent_at"`
}

// ReminderStat — агрегат журнала напоминаний по виду.
type ReminderStat struct {
	EntityType EntityType   `json:"entity_type"`
	Kind       ReminderKind `json:"reminder_kind"`
	Count      int          `json:"count"`
	LastSentAt *time.Time   `json:"last_sent_at,omitempty"`
}
