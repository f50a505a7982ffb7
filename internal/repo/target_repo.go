package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Engage/internal/domain"
)

// TargetRepo — read-only доступ к таблицам CRM: встречи, лиды, счета,
// клиенты и пользователи.
type TargetRepo struct {
	pool *pgxpool.Pool
}

// NewTargetRepo создаёт новый TargetRepo.
func NewTargetRepo(pool *pgxpool.Pool) *TargetRepo {
	return &TargetRepo{pool: pool}
}

// AppointmentsStartingBetween возвращает запланированные и подтверждённые
// встречи с началом в [from, to) вместе с участниками.
func (r *TargetRepo) AppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	query := `
		SELECT e.id, e.title, e.start_time, e.location, e.status,
		       e.metadata->>'contact_email', e.metadata->>'contact_phone', e.metadata->>'contact_name',
		       e.lead_id, e.customer_id,
		       COALESCE((
		           SELECT json_agg(json_build_object('name', p.name, 'email', p.email, 'phone', p.phone))
		           FROM calendar_event_participants p
		           WHERE p.event_id = e.id
		       ), '[]'::json)
		FROM calendar_events e
		WHERE e.status IN ('scheduled', 'confirmed')
		  AND e.start_time >= $1 AND e.start_time < $2
		ORDER BY e.start_time ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		var location, email, phone, name *string
		var participantsJSON []byte

		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.StartTime,
			&location,
			&a.Status,
			&email,
			&phone,
			&name,
			&a.LeadID,
			&a.CustomerID,
			&participantsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}

		a.Location = deref(location)
		a.Contact = domain.Contact{Email: deref(email), Phone: deref(phone), Name: deref(name)}
		if err := json.Unmarshal(participantsJSON, &a.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StaleLeads возвращает лиды в статусе new, созданные раньше createdBefore.
func (r *TargetRepo) StaleLeads(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, project_type, status, owner_id, created_at
		FROM leads
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, domain.LeadStatusNew, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var l domain.Lead
		var email, phone, projectType *string
		if err := rows.Scan(&l.ID, &l.Name, &email, &phone, &projectType, &l.Status, &l.OwnerID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.Email = deref(email)
		l.Phone = deref(phone)
		l.ProjectType = deref(projectType)
		out = append(out, l)
	}
	return out, rows.Err()
}

// OverdueInvoices возвращает выставленные счета с истёкшим сроком оплаты.
// Контакт берётся из счёта, недостающие поля — из клиента.
func (r *TargetRepo) OverdueInvoices(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.invoice_number,
		       COALESCE(i.customer_email, c.email), COALESCE(i.customer_phone, c.phone),
		       COALESCE(i.customer_name, c.name), i.customer_id,
		       i.total_cents, i.currency, i.due_date, i.status
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		WHERE i.status = $1 AND i.due_date < $2
		ORDER BY i.due_date ASC
		LIMIT $3
	`, domain.InvoiceStatusSent, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var email, phone, name *string
		if err := rows.Scan(
			&inv.ID,
			&inv.Number,
			&email,
			&phone,
			&name,
			&inv.Contact.CustomerID,
			&inv.TotalCents,
			&inv.Currency,
			&inv.DueDate,
			&inv.Status,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.Contact.Email = deref(email)
		inv.Contact.Phone = deref(phone)
		inv.Contact.Name = deref(name)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// LeadContact возвращает контакт лида.
func (r *TargetRepo) LeadContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return r.contact(ctx, `SELECT email, phone, name FROM leads WHERE id = $1`, id)
}

// CustomerContact возвращает контакт клиента.
func (r *TargetRepo) CustomerContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return r.contact(ctx, `SELECT email, phone, name FROM customers WHERE id = $1`, id)
}

func (r *TargetRepo) contact(ctx context.Context, query string, id uuid.UUID) (*domain.Contact, error) {
	var email, phone, name *string
	err := r.pool.QueryRow(ctx, query, id).Scan(&email, &phone, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &domain.Contact{Email: deref(email), Phone: deref(phone), Name: deref(name)}, nil
}

// CustomerUserID возвращает пользователя, связанного с клиентом.
// nil без ошибки — у клиента нет учётной записи.
func (r *TargetRepo) CustomerUserID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error) {
	var userID *uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM customers WHERE id = $1`, customerID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer user: %w", err)
	}
	return userID, nil
}

// User возвращает пользователя по ID.
func (r *TargetRepo) User(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT id, email, full_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
