package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// pgUniqueViolation — SQLSTATE нарушения уникального индекса.
const pgUniqueViolation = "23505"

// EnrollmentRepo — репозиторий enrollments.
//
// Контакт хранится колонками, история шагов — JSONB-массивом.
// Любое изменение состояния и запись в историю выполняются
// одним UPDATE.
type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepo создаёт новый EnrollmentRepo.
func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

const enrollmentColumns = `
	id, sequence_id, contact_email, contact_phone, contact_name, lead_id, customer_id, user_id,
	current_step, status, next_action_at, last_action_at, step_history, pause_reason,
	created_at, updated_at, completed_at
`

// Create сохраняет новый enrollment.
// Возвращает ErrAlreadyExists, если у контакта уже есть открытый enrollment.
func (r *EnrollmentRepo) Create(ctx context.Context, e *domain.Enrollment) error {
	historyJSON, err := json.Marshal(e.StepHistory)
	if err != nil {
		return fmt.Errorf("marshal step history: %w", err)
	}

	query := `
		INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.SequenceID,
		nullString(e.Contact.Email),
		nullString(e.Contact.Phone),
		nullString(e.Contact.Name),
		nullUUID(e.Contact.LeadID),
		nullUUID(e.Contact.CustomerID),
		nullUUID(e.Contact.UserID),
		e.CurrentStep,
		e.Status,
		e.NextActionAt,
		e.LastActionAt,
		historyJSON,
		nullString(e.PauseReason),
		e.CreatedAt,
		e.UpdatedAt,
		e.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// GetByID возвращает enrollment по ID.
func (r *EnrollmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	e, err := scanEnrollment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// FindDue возвращает активные enrollments с наступившим next_action_at,
// самые старые первыми.
//
// Строки не блокируются: два параллельных процесса получат одни и те же
// записи.
func (r *EnrollmentRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE status = 'active' AND next_action_at <= $1
		ORDER BY next_action_at ASC, id ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due enrollments: %w", err)
	}
	return collectEnrollments(rows)
}

// ListBySequence возвращает enrollments последовательности по времени создания.
func (r *EnrollmentRepo) ListBySequence(ctx context.Context, sequenceID uuid.UUID, limit int) ([]domain.Enrollment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE sequence_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, sequenceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list enrollments by sequence: %w", err)
	}
	return collectEnrollments(rows)
}

// HasOpen проверяет, есть ли у контакта активный или приостановленный
// enrollment в последовательности. Контакт сравнивается по лиду,
// затем по клиенту, затем по email.
func (r *EnrollmentRepo) HasOpen(ctx context.Context, sequenceID uuid.UUID, contact domain.Contact) (bool, error) {
	var cond string
	var arg any
	switch {
	case contact.LeadID != nil:
		cond, arg = "lead_id = $2", *contact.LeadID
	case contact.CustomerID != nil:
		cond, arg = "customer_id = $2", *contact.CustomerID
	case contact.Email != "":
		cond, arg = "lower(contact_email) = lower($2)", contact.Email
	default:
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE sequence_id = $1 AND status IN ('active', 'paused') AND `+cond+`
		)
	`, sequenceID, arg).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return exists, nil
}

// Update сохраняет состояние enrollment и добавляет entry в историю.
func (r *EnrollmentRepo) Update(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) error {
	entryJSON, err := json.Marshal([]domain.StepHistoryEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	query := `
		UPDATE enrollments
		SET current_step = $2, status = $3, next_action_at = $4, last_action_at = $5,
		    pause_reason = $6, updated_at = $7, completed_at = $8,
		    step_history = step_history || $9::jsonb
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CurrentStep,
		e.Status,
		e.NextActionAt,
		e.LastActionAt,
		nullString(e.PauseReason),
		e.UpdatedAt,
		e.CompletedAt,
		entryJSON,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory добавляет запись в историю, не меняя состояние.
func (r *EnrollmentRepo) AppendHistory(ctx context.Context, id uuid.UUID, entry domain.StepHistoryEntry) error {
	entryJSON, err := json.Marshal([]domain.StepHistoryEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE enrollments
		SET step_history = step_history || $2::jsonb, updated_at = $3
		WHERE id = $1
	`, id, entryJSON, entry.ExecutedAt)
	if err != nil {
		return fmt.Errorf("append enrollment history: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func collectEnrollments(rows pgx.Rows) ([]domain.Enrollment, error) {
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// scanEnrollment читает строку enrollments. pgx.ErrNoRows возвращается как есть.
func scanEnrollment(row pgx.Row) (*domain.Enrollment, error) {
	var e domain.Enrollment
	var email, phone, name, pauseReason *string
	var historyJSON []byte

	err := row.Scan(
		&e.ID,
		&e.SequenceID,
		&email,
		&phone,
		&name,
		&e.Contact.LeadID,
		&e.Contact.CustomerID,
		&e.Contact.UserID,
		&e.CurrentStep,
		&e.Status,
		&e.NextActionAt,
		&e.LastActionAt,
		&historyJSON,
		&pauseReason,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	e.Contact.Email = deref(email)
	e.Contact.Phone = deref(phone)
	e.Contact.Name = deref(name)
	e.PauseReason = deref(pauseReason)

	if historyJSON != nil {
		if err := json.Unmarshal(historyJSON, &e.StepHistory); err != nil {
			return nil, fmt.Errorf("unmarshal step history: %w", err)
		}
	}
	return &e, nil
}
