package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/reminder"
	"github.com/shaiso/Engage/internal/telemetry"
)

// maxErrors — сколько последних ошибок хранит Status.
const maxErrors = 10

// EnrollmentRunner — продвижение enrollments.
type EnrollmentRunner interface {
	ProcessDue(ctx context.Context, batchSize int) (*enrollment.Summary, error)
}

// ReminderRunner — напоминания.
type ReminderRunner interface {
	ProcessAppointments(ctx context.Context) (*reminder.Result, error)
	ProcessLeadFollowUps(ctx context.Context) (*reminder.Result, error)
	ProcessPaymentReminders(ctx context.Context) (*reminder.Result, error)
}

// Config — конфигурация Scheduler.
type Config struct {
	Settings    Settings
	Enrollments EnrollmentRunner
	Reminders   ReminderRunner
	Metrics     *telemetry.Metrics
	Now         func() time.Time
	Logger      *slog.Logger
}

// Scheduler — два независимых повторяющихся триггера: напоминания
// о встречах и полный прогон.
//
// Плановые срабатывания одного триггера не накладываются друг на друга
// (cron.SkipIfStillRunning). Первый запуск после Start и ручной Trigger
// идут мимо cron и могут выполняться одновременно с плановым запуском
// той же задачи. Обработчики должны это переносить.
type Scheduler struct {
	enrollments EnrollmentRunner
	reminders   ReminderRunner
	metrics     *telemetry.Metrics
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	settings  Settings
	running   bool
	startedAt *time.Time
	cron      *cron.Cron
	entries   map[Job]cron.EntryID
	stopCh    chan struct{}
	baseCtx   context.Context
	stats     map[Job]*JobStats
	errors    []JobError
}

// New создаёт Scheduler. Пустые интервалы заменяются значениями по умолчанию.
func New(cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		enrollments: cfg.Enrollments,
		reminders:   cfg.Reminders,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		logger:      cfg.Logger,
		settings:    cfg.Settings.withDefaults(),
		stats:       make(map[Job]*JobStats),
	}
}

// Start запускает триггеры после StartDelay.
//
// Если планировщик уже запущен или выключен, ничего не делает.
// ctx становится контекстом задач: Stop не прерывает уже идущие задачи,
// отмена ctx прерывает.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) error {
	if s.running {
		s.logger.Warn("scheduler already running")
		return nil
	}
	if !s.settings.Enabled {
		s.logger.Info("scheduler is disabled")
		return nil
	}

	st := s.settings
	apptSchedule, err := triggerSchedule(st.AppointmentCron, st.AppointmentInterval)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fullSchedule, err := triggerSchedule(st.FullCron, st.FullInterval)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	entries := map[Job]cron.EntryID{
		JobAppointments: c.Schedule(apptSchedule, cron.FuncJob(func() { s.run(ctx, JobAppointments) })),
		JobFull:         c.Schedule(fullSchedule, cron.FuncJob(func() { s.run(ctx, JobFull) })),
	}

	now := s.now()
	s.running = true
	s.startedAt = &now
	s.cron = c
	s.entries = entries
	s.baseCtx = ctx
	s.stopCh = make(chan struct{})

	s.logger.Info("starting scheduler",
		"appointments", describe(st.AppointmentCron, st.AppointmentInterval),
		"full", describe(st.FullCron, st.FullInterval),
		"start_delay", st.StartDelay,
	)

	go s.launch(ctx, c, s.stopCh, st)
	return nil
}

// launch ждёт StartDelay, запускает cron и делает немедленные прогоны.
func (s *Scheduler) launch(ctx context.Context, c *cron.Cron, stop <-chan struct{}, st Settings) {
	if !wait(ctx, stop, st.StartDelay) {
		return
	}

	s.mu.Lock()
	select {
	case <-stop:
		s.mu.Unlock()
		return
	default:
	}
	c.Start()
	s.mu.Unlock()
	s.logger.Info("scheduler jobs scheduled")

	go s.run(ctx, JobAppointments)

	if !wait(ctx, stop, st.FullStagger) {
		return
	}
	s.run(ctx, JobFull)
}

func wait(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop останавливает триггеры и отложенный старт.
// Безопасен, если планировщик не запущен. Идущие задачи не прерываются.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		s.logger.Debug("scheduler not running")
		return
	}
	close(s.stopCh)
	s.cron.Stop()
	s.cron = nil
	s.entries = nil
	s.running = false
	s.logger.Info("scheduler stopped")
}

// UpdateConfig применяет частичные настройки.
//
// Запущенный планировщик перезапускается с новыми настройками,
// остановленный только сохраняет их.
func (s *Scheduler) UpdateConfig(patch Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := patch.Apply(s.settings).withDefaults()
	if err := next.Validate(); err != nil {
		return s.settings, err
	}

	wasRunning := s.running
	ctx := s.baseCtx
	if wasRunning {
		s.stopLocked()
	}

	s.settings = next
	s.logger.Info("scheduler config updated",
		"enabled", next.Enabled,
		"appointments", describe(next.AppointmentCron, next.AppointmentInterval),
		"full", describe(next.FullCron, next.FullInterval),
		"batch_size", next.BatchSize,
	)

	if wasRunning {
		if err := s.startLocked(ctx); err != nil {
			return next, err
		}
	}
	return next, nil
}

// Settings возвращает действующие настройки.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Running сообщает, запущен ли планировщик.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status возвращает снимок состояния.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Status{
		Running:          s.running,
		Enabled:          s.settings.Enabled,
		AppointmentEvery: describe(s.settings.AppointmentCron, s.settings.AppointmentInterval),
		FullEvery:        describe(s.settings.FullCron, s.settings.FullInterval),
		BatchSize:        s.settings.BatchSize,
		Jobs:             make(map[Job]JobStats, len(s.stats)),
		Errors:           append([]JobError{}, s.errors...),
	}
	if s.running && s.startedAt != nil {
		t := *s.startedAt
		st.StartedAt = &t
		st.UptimeSec = int64(now.Sub(t) / time.Second)
	}
	for job, js := range s.stats {
		st.Jobs[job] = *js
	}
	if s.cron != nil {
		for job, id := range s.entries {
			next := s.cron.Entry(id).Next
			if next.IsZero() {
				continue
			}
			js := st.Jobs[job]
			js.NextRun = &next
			st.Jobs[job] = js
		}
	}
	return st
}

// run выполняет задачу с учётом статистики. Ошибки и паники
// записываются и не выходят наружу.
func (s *Scheduler) run(ctx context.Context, job Job) *Report {
	logger := telemetry.WithJob(s.logger, string(job))
	started := s.now()
	wall := time.Now()

	report, err := s.execute(ctx, job, logger)
	report.Duration = time.Since(wall)
	report.StartedAt = started

	s.metrics.JobRun(string(job), err == nil, report.Duration)

	s.mu.Lock()
	js, ok := s.stats[job]
	if !ok {
		js = &JobStats{}
		s.stats[job] = js
	}
	js.Runs++
	finished := s.now()
	js.LastRun = &finished
	if err != nil {
		report.Error = err.Error()
		js.Failures++
		s.errors = append(s.errors, JobError{Job: job, Error: err.Error(), At: finished})
		if len(s.errors) > maxErrors {
			s.errors = s.errors[len(s.errors)-maxErrors:]
		}
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("scheduler job failed", "error", err)
		telemetry.CaptureError(err, map[string]string{"job": string(job)})
	} else {
		logger.Debug("scheduler job completed", "duration", report.Duration)
	}
	return report
}

func (s *Scheduler) execute(ctx context.Context, job Job, logger *slog.Logger) (report *Report, err error) {
	report = &Report{Job: job}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	batch := s.Settings().BatchSize

	switch job {
	case JobAppointments:
		report.Appointments, err = s.reminders.ProcessAppointments(ctx)
	case JobEnrollments:
		report.Enrollments, err = s.enrollments.ProcessDue(ctx, batch)
	case JobLeads:
		report.Leads, err = s.reminders.ProcessLeadFollowUps(ctx)
	case JobPayments:
		report.Payments, err = s.reminders.ProcessPaymentReminders(ctx)
	case JobFull:
		err = s.runAll(ctx, report, batch, false)
	case JobAll:
		err = s.runAll(ctx, report, batch, true)
	default:
		return report, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}

	if err == nil {
		logger.Info("scheduler job finished", reportAttrs(report)...)
	}
	return report, err
}

// runAll — полный прогон: enrollments, лиды, счета (и встречи для all).
// Ошибка одной части не отменяет остальные.
func (s *Scheduler) runAll(ctx context.Context, report *Report, batch int, withAppointments bool) error {
	var errs []error
	var err error

	if withAppointments {
		if report.Appointments, err = s.reminders.ProcessAppointments(ctx); err != nil {
			errs = append(errs, fmt.Errorf("appointments: %w", err))
		}
	}
	if report.Enrollments, err = s.enrollments.ProcessDue(ctx, batch); err != nil {
		errs = append(errs, fmt.Errorf("enrollments: %w", err))
	}
	if report.Leads, err = s.reminders.ProcessLeadFollowUps(ctx); err != nil {
		errs = append(errs, fmt.Errorf("leads: %w", err))
	}
	if report.Payments, err = s.reminders.ProcessPaymentReminders(ctx); err != nil {
		errs = append(errs, fmt.Errorf("payments: %w", err))
	}
	return errors.Join(errs...)
}

// Trigger немедленно выполняет задачу вне расписания, синхронно.
func (s *Scheduler) Trigger(ctx context.Context, job Job) (*Report, error) {
	if !job.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	return s.run(ctx, job), nil
}

func reportAttrs(r *Report) []any {
	var attrs []any
	if r.Enrollments != nil {
		attrs = append(attrs,
			"enrollments_due", r.Enrollments.Due,
			"enrollments_advanced", r.Enrollments.Advanced,
			"enrollments_failed", r.Enrollments.Failed,
		)
	}
	if r.Appointments != nil {
		attrs = append(attrs, "appointment_email", r.Appointments.Email, "appointment_sms", r.Appointments.SMS)
	}
	if r.Leads != nil {
		attrs = append(attrs, "lead_email", r.Leads.Email, "lead_notifications", r.Leads.Notifications)
	}
	if r.Payments != nil {
		attrs = append(attrs, "payment_email", r.Payments.Email, "payment_sms", r.Payments.SMS)
	}
	return attrs
}
