package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// FollowUpRepo — внутренние задачи, создаваемые шагами типа task.
// Реализует channel.Tasks.
type FollowUpRepo struct {
	pool *pgxpool.Pool
}

// NewFollowUpRepo создаёт новый FollowUpRepo.
func NewFollowUpRepo(pool *pgxpool.Pool) *FollowUpRepo {
	return &FollowUpRepo{pool: pool}
}

// CreateFollowUp сохраняет задачу. Пустой ID заполняется.
func (r *FollowUpRepo) CreateFollowUp(ctx context.Context, task *domain.FollowUpTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `
		INSERT INTO follow_up_tasks (id, owner_id, enrollment_id, lead_id, customer_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.OwnerID,
		task.EnrollmentID,
		nullUUID(task.LeadID),
		nullUUID(task.CustomerID),
		task.Title,
		nullString(task.Description),
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert follow-up task: %w", err)
	}
	return nil
}
