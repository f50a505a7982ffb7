package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// ReminderLogRepo — журнал отправленных напоминаний. Только вставка и чтение.
type ReminderLogRepo struct {
	pool *pgxpool.Pool
}

// NewReminderLogRepo создаёт новый ReminderLogRepo.
func NewReminderLogRepo(pool *pgxpool.Pool) *ReminderLogRepo {
	return &ReminderLogRepo{pool: pool}
}

// Exists проверяет, есть ли запись с sent_at не раньше since.
func (r *ReminderLogRepo) Exists(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, kind domain.ReminderKind, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminder_log
			WHERE entity_id = $1 AND entity_type = $2 AND reminder_kind = $3 AND sent_at >= $4
		)
	`, entityID, entityType, kind, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return exists, nil
}

// Insert добавляет запись в журнал.
func (r *ReminderLogRepo) Insert(ctx context.Context, entry *domain.ReminderLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_log (id, entity_id, entity_type, reminder_kind, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.EntityID, entry.EntityType, entry.Kind, entry.SentAt)
	if err != nil {
		return fmt.Errorf("insert reminder log: %w", err)
	}
	return nil
}

// Stats возвращает количество отправок по типу сущности и виду с момента since.
func (r *ReminderLogRepo) Stats(ctx context.Context, since time.Time) ([]domain.ReminderStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT entity_type, reminder_kind, COUNT(*), MAX(sent_at)
		FROM reminder_log
		WHERE sent_at >= $1
		GROUP BY entity_type, reminder_kind
		ORDER BY entity_type, reminder_kind
	`, since)
	if err != nil {
		return nil, fmt.Errorf("reminder stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ReminderStat
	for rows.Next() {
		var st domain.ReminderStat
		if err := rows.Scan(&st.EntityType, &st.Kind, &st.Count, &st.LastSentAt); err != nil {
			return nil, fmt.Errorf("scan reminder stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
