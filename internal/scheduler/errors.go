package scheduler

import "errors"

var (
	// ErrUnknownJob — неизвестное имя задачи.
	ErrUnknownJob = errors.New("unknown job")

	// ErrInvalidConfig — некорректные настройки планировщика.
	ErrInvalidConfig = errors.New("invalid scheduler config")

	// ErrJobPanicked — задача завершилась паникой.
	ErrJobPanicked = errors.New("job panicked")
)
