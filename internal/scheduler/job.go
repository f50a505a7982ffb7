package scheduler

import (
	"fmt"
	"time"

	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/reminder"
)

// Job — имя задачи планировщика.
type Job string

const (
	// JobAppointments — напоминания о встречах (частый триггер).
	JobAppointments Job = "appointments"

	// JobFull — полный прогон: enrollments, лиды, счета (редкий триггер).
	JobFull Job = "full"

	JobEnrollments Job = "enrollments"
	JobLeads       Job = "leads"
	JobPayments    Job = "payments"

	// JobAll — всё сразу, включая встречи. Только ручной запуск.
	JobAll Job = "all"
)

// IsValid проверяет имя задачи.
func (j Job) IsValid() bool {
	switch j {
	case JobAppointments, JobFull, JobEnrollments, JobLeads, JobPayments, JobAll:
		return true
	}
	return false
}

// ParseJob разбирает имя задачи.
func ParseJob(s string) (Job, error) {
	j := Job(s)
	if !j.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownJob, s)
	}
	return j, nil
}

// Report — результат одного выполнения задачи.
type Report struct {
	Job          Job                 `json:"job"`
	StartedAt    time.Time           `json:"started_at"`
	Duration     time.Duration       `json:"duration_ns"`
	Enrollments  *enrollment.Summary `json:"enrollments,omitempty"`
	Appointments *reminder.Result    `json:"appointments,omitempty"`
	Leads        *reminder.Result    `json:"leads,omitempty"`
	Payments     *reminder.Result    `json:"payments,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// JobStats — статистика задачи.
type JobStats struct {
	Runs     int        `json:"runs"`
	Failures int        `json:"failures"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// JobError — запись об ошибке задачи.
type JobError struct {
	Job   Job       `json:"job"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// Status — снимок состояния планировщика.
type Status struct {
	Running          bool             `json:"running"`
	Enabled          bool             `json:"enabled"`
	AppointmentEvery string           `json:"appointment_every"`
	FullEvery        string           `json:"full_every"`
	BatchSize        int              `json:"batch_size"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	UptimeSec        int64            `json:"uptime_sec"`
	Jobs             map[Job]JobStats `json:"jobs"`
	Errors           []JobError       `json:"errors"`
}
