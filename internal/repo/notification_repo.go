package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepo — in-app уведомления. Реализует channel.Notification.
type NotificationRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewNotificationRepo создаёт новый NotificationRepo.
func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool, now: time.Now}
}

// Create создаёт уведомление для пользователя.
func (r *NotificationRepo) Create(ctx context.Context, userID uuid.UUID, kind, title, body string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, kind, title, body, r.now())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
