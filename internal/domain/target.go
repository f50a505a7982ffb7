package domain

import (
	"time"

	"github.com/google/uuid"
)

// Appointment — предстоящая встреча.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	Location  string    `json:"location,omitempty"`
	Status    string    `json:"status"`

	// Contact — контакт, указанный явно в метаданных встречи.
	Contact Contact `json:"contact"`

	LeadID     *uuid.UUID `json:"lead_id,omitempty"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`

	// Participants — дополнительные участники.
	Participants []Participant `json:"participants,omitempty"`
}

// Participant — участник встречи.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// LeadStatusNew — лид, с которым ещё не связались.
const LeadStatusNew = "new"

// Lead — лид, ожидающий реакции.
type Lead struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	ProjectType string     `json:"project_type,omitempty"`
	Status      string     `json:"status"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InvoiceStatusSent — счёт выставлен, но не оплачен.
const InvoiceStatusSent = "sent"

// Invoice — неоплаченный просроченный счёт.
type Invoice struct {
	ID         uuid.UUID `json:"id"`
	Number     string    `json:"invoice_number"`
	Contact    Contact   `json:"contact"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	DueDate    time.Time `json:"due_date"`
	Status     string    `json:"status"`
}

// User — внутренний пользователь (владелец лида или последовательности).
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// FollowUpTask — внутренняя задача, создаваемая шагом типа task.
type FollowUpTask struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	EnrollmentID uuid.UUID  `json:"enrollment_id"`
	LeadID       *uuid.UUID `json:"lead_id,omitempty"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
