// Package dedup не даёт процессору напоминаний отправить одно и то же
// напоминание повторно.
//
// Проверка (HasBeenSent) и запись (RecordSent) — два отдельных вызова.
// Между ними есть окно: два параллельных тика могут оба увидеть
// "не отправлено" и оба отправить. Это известное ограничение,
// блокировок здесь нет.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
)

// DefaultLookback — окно, в котором ищется предыдущая отправка.
const DefaultLookback = 7 * 24 * time.Hour

// LogRepository — журнал отправленных напоминаний.
type LogRepository interface {
	Exists(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, kind domain.ReminderKind, since time.Time) (bool, error)
	Insert(ctx context.Context, entry *domain.ReminderLogEntry) error
}

// Config — конфигурация Deduplicator.
type Config struct {
	Log LogRepository

	// Lookback — окно поиска (default: 7 дней).
	Lookback time.Duration

	// Now — часы. По умолчанию time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Deduplicator — единственный источник истины "напоминание уже отправлено".
type Deduplicator struct {
	log      LogRepository
	lookback time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New создаёт Deduplicator.
func New(cfg Config) *Deduplicator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Deduplicator{
		log:      cfg.Log,
		lookback: cfg.Lookback,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// Lookback возвращает действующее окно.
func (d *Deduplicator) Lookback() time.Duration {
	return d.lookback
}

// HasBeenSent проверяет, было ли напоминание отправлено в пределах окна.
func (d *Deduplicator) HasBeenSent(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, kind domain.ReminderKind) (bool, error) {
	since := d.now().Add(-d.lookback)
	sent, err := d.log.Exists(ctx, entityID, entityType, kind, since)
	if err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return sent, nil
}

// RecordSent добавляет запись об отправке.
func (d *Deduplicator) RecordSent(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, kind domain.ReminderKind) error {
	entry := &domain.ReminderLogEntry{
		ID:         uuid.New(),
		EntityID:   entityID,
		EntityType: entityType,
		Kind:       kind,
		SentAt:     d.now(),
	}
	if err := d.log.Insert(ctx, entry); err != nil {
		return fmt.Errorf("insert reminder log: %w", err)
	}

	d.logger.Debug("reminder recorded",
		"entity_id", entityID,
		"entity_type", entityType,
		"reminder_kind", kind,
	)
	return nil
}
