package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// TemplateRepo — репозиторий сохранённых шаблонов сообщений.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// GetTemplate возвращает шаблон по ссылке.
func (r *TemplateRepo) GetTemplate(ctx context.Context, ref string) (*domain.MessageTemplate, error) {
	var t domain.MessageTemplate
	var contentJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT ref, content, updated_at FROM message_templates WHERE ref = $1
	`, ref).Scan(&t.Ref, &contentJSON, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	if err := json.Unmarshal(contentJSON, &t.Content); err != nil {
		return nil, fmt.Errorf("unmarshal template content: %w", err)
	}
	return &t, nil
}
