package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// SequenceRepo — репозиторий последовательностей.
type SequenceRepo struct {
	pool *pgxpool.Pool
}

// NewSequenceRepo создаёт новый SequenceRepo.
func NewSequenceRepo(pool *pgxpool.Pool) *SequenceRepo {
	return &SequenceRepo{pool: pool}
}

// Get возвращает последовательность по ID вместе с шагами.
func (r *SequenceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Sequence, error) {
	query := `
		SELECT id, owner_id, name, is_active, steps, created_at, updated_at
		FROM sequences
		WHERE id = $1
	`
	var seq domain.Sequence
	var stepsJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&seq.ID,
		&seq.OwnerID,
		&seq.Name,
		&seq.IsActive,
		&stepsJSON,
		&seq.CreatedAt,
		&seq.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &seq.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	for i := range seq.Steps {
		seq.Steps[i].Index = i
	}
	return &seq, nil
}
