package domain

// EnrollmentStatus — статус записи контакта в последовательность.
//
// Жизненный цикл:
//
//	active → completed
//	active ⇄ paused
//	active/paused → cancelled
type EnrollmentStatus string

const (
	// EnrollmentActive — записан, шаги выполняются по расписанию.
	EnrollmentActive EnrollmentStatus = "active"

	// EnrollmentPaused — приостановлен (вручную или из-за деактивации последовательности).
	EnrollmentPaused EnrollmentStatus = "paused"

	// EnrollmentCompleted — все шаги выполнены.
	EnrollmentCompleted EnrollmentStatus = "completed"

	// EnrollmentCancelled — отменён вручную.
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentCompleted, EnrollmentCancelled:
		return true
	default:
		return false
	}
}

// ParseEnrollmentStatus парсит строку в EnrollmentStatus.
func ParseEnrollmentStatus(s string) (EnrollmentStatus, bool) {
	switch EnrollmentStatus(s) {
	case EnrollmentActive, EnrollmentPaused, EnrollmentCompleted, EnrollmentCancelled:
		return EnrollmentStatus(s), true
	default:
		return "", false
	}
}

// Outcome — результат, записываемый в историю шагов.
type Outcome string

const (
	OutcomeEnrolled  Outcome = "enrolled"
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCompleted Outcome = "completed"
	OutcomePaused    Outcome = "paused"
	OutcomeResumed   Outcome = "resumed"
	OutcomeCancelled Outcome = "cancelled"
)
