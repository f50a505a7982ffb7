package enrollment

import "errors"

// Ошибки операций с enrollments.
var (
	// ErrSequenceInactive — последовательность выключена.
	ErrSequenceInactive = errors.New("sequence is not active")

	// ErrSequenceInvalid — последовательность нельзя выполнить.
	ErrSequenceInvalid = errors.New("sequence is invalid")

	// ErrNoContact — не удалось определить контакт для записи.
	ErrNoContact = errors.New("no contact to enroll")

	// ErrAlreadyEnrolled — контакт уже записан и не завершил последовательность.
	ErrAlreadyEnrolled = errors.New("contact already enrolled")
)
