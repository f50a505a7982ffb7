package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/executor"
	"github.com/shaiso/Engage/internal/repo"
	"github.com/shaiso/Engage/internal/telemetry"
)

// DefaultBatchSize — сколько enrollments обрабатывается за один вызов.
const DefaultBatchSize = 50

// Причины паузы, выставляемые процессором.
const (
	ReasonSequenceDeactivated = "sequence deactivated"
	ReasonSequenceNotFound    = "sequence not found"
)

// EnrollmentRepository — хранилище enrollments для процессора.
type EnrollmentRepository interface {
	// FindDue возвращает активные enrollments с next_action_at ≤ now,
	// отсортированные по next_action_at.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error)

	// Update сохраняет состояние и добавляет entry в историю одной операцией.
	Update(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) error

	// AppendHistory только добавляет entry в историю.
	AppendHistory(ctx context.Context, id uuid.UUID, entry domain.StepHistoryEntry) error
}

// SequenceRepository — хранилище последовательностей.
type SequenceRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Sequence, error)
}

// StepExecutor выполняет один шаг.
type StepExecutor interface {
	Execute(ctx context.Context, in *executor.Input) *executor.Result
}

// EventPublisher публикует события enrollments.
type EventPublisher interface {
	PublishEnrollmentEvent(ctx context.Context, evt domain.EnrollmentEvent) error
}

// Summary — итог одного вызова ProcessDue.
type Summary struct {
	Due       int `json:"due"`
	Advanced  int `json:"advanced"`
	Completed int `json:"completed"`
	Paused    int `json:"paused"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// ProcessorConfig — конфигурация Processor.
type ProcessorConfig struct {
	Enrollments EnrollmentRepository
	Sequences   SequenceRepository
	Executor    StepExecutor

	// Events — публикация событий (опционально).
	Events EventPublisher

	// Metrics — метрики (опционально).
	Metrics *telemetry.Metrics

	// BatchSize — размер пачки по умолчанию (default: 50).
	BatchSize int

	// Now — часы. По умолчанию time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Processor продвигает due enrollments на один шаг за вызов.
type Processor struct {
	enrollments EnrollmentRepository
	sequences   SequenceRepository
	executor    StepExecutor
	events      EventPublisher
	metrics     *telemetry.Metrics
	batchSize   int
	now         func() time.Time
	logger      *slog.Logger
}

// NewProcessor создаёт Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		enrollments: cfg.Enrollments,
		sequences:   cfg.Sequences,
		executor:    cfg.Executor,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		batchSize:   cfg.BatchSize,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// ProcessDue обрабатывает пачку due enrollments.
//
// batchSize <= 0 — используется размер из конфигурации.
// Ошибка возвращается только если не удалось выбрать пачку;
// ошибки отдельных enrollments учитываются в Summary.Errors.
func (p *Processor) ProcessDue(ctx context.Context, batchSize int) (*Summary, error) {
	if batchSize <= 0 {
		batchSize = p.batchSize
	}

	due, err := p.enrollments.FindDue(ctx, p.now(), batchSize)
	if err != nil {
		return nil, fmt.Errorf("find due enrollments: %w", err)
	}

	summary := &Summary{Due: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	p.logger.Info("processing due enrollments", "count", len(due))

	// Последовательности кэшируются в пределах одной пачки.
	sequences := make(map[uuid.UUID]*domain.Sequence)

	for i := range due {
		e := &due[i]
		outcome, err := p.processOne(ctx, e, sequences)
		if err != nil {
			p.logger.Error("failed to process enrollment",
				"enrollment_id", e.ID,
				"error", err,
			)
			summary.Errors++
			continue
		}

		switch outcome {
		case domain.OutcomeSuccess:
			if e.Status == domain.EnrollmentCompleted {
				summary.Completed++
			} else {
				summary.Advanced++
			}
		case domain.OutcomeCompleted:
			summary.Completed++
		case domain.OutcomePaused:
			summary.Paused++
		case domain.OutcomeFailed:
			summary.Failed++
		}
	}

	p.logger.Info("due enrollments processed",
		"due", summary.Due,
		"advanced", summary.Advanced,
		"completed", summary.Completed,
		"paused", summary.Paused,
		"failed", summary.Failed,
		"errors", summary.Errors,
	)

	return summary, nil
}

// processOne выполняет один шаг state machine. Паника превращается в ошибку.
func (p *Processor) processOne(ctx context.Context, e *domain.Enrollment, cache map[uuid.UUID]*domain.Sequence) (outcome domain.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	seq, err := p.loadSequence(ctx, e.SequenceID, cache)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	now := p.now()

	// 1. Последовательность удалена или выключена
	if seq == nil || !seq.IsActive {
		reason := ReasonSequenceDeactivated
		if seq == nil {
			reason = ReasonSequenceNotFound
		}
		entry, err := e.Pause(reason, now)
		if err != nil {
			return "", err
		}
		if err := p.save(ctx, e, entry); err != nil {
			return "", err
		}
		p.logger.Info("enrollment paused", "enrollment_id", e.ID, "reason", reason)
		return domain.OutcomePaused, nil
	}

	// 2. Шаги закончились
	step, ok := seq.StepAt(e.CurrentStep)
	if !ok {
		entry := e.Complete(seq.Len(), now, "no steps remaining")
		if err := p.save(ctx, e, entry); err != nil {
			return "", err
		}
		return domain.OutcomeCompleted, nil
	}

	// 3. Выполняем шаг
	res := p.executor.Execute(ctx, &executor.Input{
		Enrollment: e,
		Sequence:   seq,
		Step:       step,
	})
	now = p.now()

	if !res.Success {
		// 5. Ошибка — только запись в историю
		entry := e.Fail(step.ActionType, now, res.Detail())
		p.metrics.StepExecuted(string(step.ActionType), string(domain.OutcomeFailed))
		if err := p.enrollments.AppendHistory(ctx, e.ID, entry); err != nil {
			return "", fmt.Errorf("append history: %w", err)
		}
		p.publish(ctx, e, entry)
		p.logger.Warn("step failed, will retry",
			"enrollment_id", e.ID,
			"step_index", entry.StepIndex,
			"action_type", step.ActionType,
			"error", res.Error,
		)
		return domain.OutcomeFailed, nil
	}

	// 4. Успех — следующий шаг или завершение
	entry := e.Advance(seq, now, res.Detail())
	p.metrics.StepExecuted(string(step.ActionType), string(domain.OutcomeSuccess))
	if err := p.save(ctx, e, entry); err != nil {
		return "", err
	}
	p.logger.Debug("step executed",
		"enrollment_id", e.ID,
		"step_index", entry.StepIndex,
		"action_type", step.ActionType,
		"status", e.Status,
	)
	return domain.OutcomeSuccess, nil
}

func (p *Processor) loadSequence(ctx context.Context, id uuid.UUID, cache map[uuid.UUID]*domain.Sequence) (*domain.Sequence, error) {
	if seq, ok := cache[id]; ok {
		if seq == nil {
			return nil, repo.ErrNotFound
		}
		return seq, nil
	}

	seq, err := p.sequences.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			cache[id] = nil
		}
		return nil, fmt.Errorf("get sequence %s: %w", id, err)
	}
	cache[id] = seq
	return seq, nil
}

func (p *Processor) save(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) error {
	if err := p.enrollments.Update(ctx, e, entry); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	p.publish(ctx, e, entry)
	return nil
}

func (p *Processor) publish(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishEnrollmentEvent(ctx, domain.NewEnrollmentEvent(e, entry)); err != nil {
		p.logger.Warn("failed to publish enrollment event",
			"enrollment_id", e.ID,
			"error", err,
		)
	}
}
