package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/scheduler"
)

// statsWindow — за какой период считается статистика напоминаний.
const statsWindow = 7 * 24 * time.Hour

// Engine — управление планировщиком.
type Engine interface {
	Start(ctx context.Context) error
	Stop()
	UpdateConfig(patch scheduler.Patch) (scheduler.Settings, error)
	Settings() scheduler.Settings
	Status() scheduler.Status
	Trigger(ctx context.Context, job scheduler.Job) (*scheduler.Report, error)
}

// Enrollments — операции жизненного цикла enrollments.
type Enrollments interface {
	Enroll(ctx context.Context, req enrollment.EnrollRequest) (*domain.Enrollment, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	List(ctx context.Context, sequenceID uuid.UUID, limit int) ([]domain.Enrollment, error)
	Pause(ctx context.Context, id uuid.UUID, reason string) (*domain.Enrollment, error)
	Resume(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
}

// ReminderStats — агрегаты журнала напоминаний.
type ReminderStats interface {
	Stats(ctx context.Context, since time.Time) ([]domain.ReminderStat, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine      Engine
	enrollments Enrollments
	reminders   ReminderStats
	cronSecret  string
	baseCtx     context.Context
	now         func() time.Time
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine      Engine
	Enrollments Enrollments
	Reminders   ReminderStats

	// CronSecret — ожидаемое значение X-Cron-Secret. Пусто — API закрыт.
	CronSecret string

	// BaseContext — контекст процесса. Планировщик, запущенный через
	// POST /engine/start, живёт в нём, а не в контексте запроса.
	BaseContext context.Context

	Now    func() time.Time
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		engine:      cfg.Engine,
		enrollments: cfg.Enrollments,
		reminders:   cfg.Reminders,
		cronSecret:  cfg.CronSecret,
		baseCtx:     cfg.BaseContext,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}
