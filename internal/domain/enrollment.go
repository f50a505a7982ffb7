package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition — переход недопустим из текущего статуса.
var ErrInvalidTransition = errors.New("invalid enrollment transition")

// Contact — контактные данные, зафиксированные в момент записи.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`

	// LeadID и CustomerID — исходные записи, из которых взят контакт.
	LeadID     *uuid.UUID `json:"lead_id,omitempty"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`

	// UserID — внутренний пользователь (для in-app уведомлений).
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// IsEmpty возвращает true, если нет ни одного канала связи.
func (c Contact) IsEmpty() bool {
	return c.Email == "" && c.Phone == ""
}

// FirstName возвращает первое слово имени.
func (c Contact) FirstName() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// StepHistoryEntry — запись журнала enrollment.
type StepHistoryEntry struct {
	StepIndex  int        `json:"step_index"`
	ExecutedAt time.Time  `json:"executed_at"`
	ActionType ActionType `json:"action_type,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Detail     string     `json:"detail,omitempty"`
}

// Enrollment — прохождение одного контакта через одну Sequence.
//
// Инварианты:
//   - 0 ≤ CurrentStep ≤ len(Sequence.Steps)
//   - Status == completed ⟺ CurrentStep == len(Sequence.Steps)
//   - NextActionAt == nil только в терминальных статусах
//
// Методы Advance, Fail, Complete, Pause, Resume, Cancel возвращают запись,
// которую они добавили в StepHistory. Репозиторий сохраняет её
// вместе с новым состоянием.
type Enrollment struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// SequenceID — последовательность, в которую записан контакт.
	SequenceID uuid.UUID `json:"sequence_id"`

	// Contact — снимок контактных данных.
	Contact Contact `json:"contact"`

	// CurrentStep — индекс следующего шага к выполнению.
	CurrentStep int `json:"current_step"`

	// Status — текущий статус.
	Status EnrollmentStatus `json:"status"`

	// NextActionAt — когда выполнять CurrentStep.
	NextActionAt *time.Time `json:"next_action_at,omitempty"`

	// LastActionAt — время последнего успешного шага.
	LastActionAt *time.Time `json:"last_action_at,omitempty"`

	// StepHistory — журнал всех переходов и попыток.
	StepHistory []StepHistoryEntry `json:"step_history"`

	// PauseReason — причина паузы.
	PauseReason string `json:"pause_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewEnrollment создаёт активную запись. Первый шаг выполняется через
// first.Delay() от now.
func NewEnrollment(seq *Sequence, contact Contact, now time.Time) *Enrollment {
	next := now
	if first, ok := seq.StepAt(0); ok {
		next = now.Add(first.Delay())
	}
	e := &Enrollment{
		ID:           uuid.New(),
		SequenceID:   seq.ID,
		Contact:      contact,
		Status:       EnrollmentActive,
		NextActionAt: &next,
		StepHistory:  []StepHistoryEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.record(now, 0, "", OutcomeEnrolled, "")
	return e
}

// IsDue проверяет, пора ли выполнять следующий шаг.
func (e *Enrollment) IsDue(now time.Time) bool {
	if e.Status != EnrollmentActive || e.NextActionAt == nil {
		return false
	}
	return !now.Before(*e.NextActionAt)
}

// Advance фиксирует успешное выполнение текущего шага.
// Если шаг был последним, enrollment завершается.
func (e *Enrollment) Advance(seq *Sequence, now time.Time, detail string) StepHistoryEntry {
	var action ActionType
	if step, ok := seq.StepAt(e.CurrentStep); ok {
		action = step.ActionType
	}
	entry := e.record(now, e.CurrentStep, action, OutcomeSuccess, detail)

	e.LastActionAt = &now
	e.CurrentStep++
	if e.CurrentStep >= seq.Len() {
		e.finish(seq.Len(), now)
		return entry
	}

	next := now.Add(seq.Steps[e.CurrentStep].Delay())
	e.NextActionAt = &next
	return entry
}

// Fail фиксирует неудачную попытку. Состояние не меняется:
// шаг будет повторён на следующем тике.
func (e *Enrollment) Fail(action ActionType, now time.Time, detail string) StepHistoryEntry {
	return e.record(now, e.CurrentStep, action, OutcomeFailed, detail)
}

// Complete завершает enrollment, у которого не осталось шагов.
func (e *Enrollment) Complete(totalSteps int, now time.Time, detail string) StepHistoryEntry {
	entry := e.record(now, e.CurrentStep, "", OutcomeCompleted, detail)
	e.finish(totalSteps, now)
	return entry
}

// Pause приостанавливает активный enrollment.
func (e *Enrollment) Pause(reason string, now time.Time) (StepHistoryEntry, error) {
	if e.Status != EnrollmentActive {
		return StepHistoryEntry{}, ErrInvalidTransition
	}
	e.Status = EnrollmentPaused
	e.PauseReason = reason
	return e.record(now, e.CurrentStep, "", OutcomePaused, reason), nil
}

// Resume возобновляет приостановленный enrollment. Текущий шаг
// становится должным немедленно.
func (e *Enrollment) Resume(now time.Time) (StepHistoryEntry, error) {
	if e.Status != EnrollmentPaused {
		return StepHistoryEntry{}, ErrInvalidTransition
	}
	e.Status = EnrollmentActive
	e.PauseReason = ""
	e.NextActionAt = &now
	return e.record(now, e.CurrentStep, "", OutcomeResumed, ""), nil
}

// Cancel отменяет enrollment. Отменённый enrollment больше не выполняется.
func (e *Enrollment) Cancel(now time.Time) (StepHistoryEntry, error) {
	if e.Status.IsTerminal() {
		return StepHistoryEntry{}, ErrInvalidTransition
	}
	e.Status = EnrollmentCancelled
	e.NextActionAt = nil
	return e.record(now, e.CurrentStep, "", OutcomeCancelled, ""), nil
}

func (e *Enrollment) finish(totalSteps int, now time.Time) {
	e.CurrentStep = totalSteps
	e.Status = EnrollmentCompleted
	e.NextActionAt = nil
	e.CompletedAt = &now
}

func (e *Enrollment) record(now time.Time, stepIndex int, action ActionType, outcome Outcome, detail string) StepHistoryEntry {
	entry := StepHistoryEntry{
		StepIndex:  stepIndex,
		ExecutedAt: now,
		ActionType: action,
		Outcome:    outcome,
		Detail:     detail,
	}
	e.StepHistory = append(e.StepHistory, entry)
	e.UpdatedAt = now
	return entry
}
