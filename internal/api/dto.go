package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/scheduler"
)

var validate = newValidator()

// newValidator возвращает validator, который называет поля по json-тегам.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate читает JSON-тело и проверяет теги validate.
// Пустое тело допустимо, если allowEmpty.
func decodeAndValidate(r *http.Request, dst any, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return errors.New("invalid request body")
		}
	}
	return validateStruct(dst)
}

// validateStruct форматирует ошибки validator в одну строку.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonFieldName(fe)
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "uuid":
			msgs = append(msgs, field+" must be a valid uuid")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

// Enrollment DTOs

// ContactRequest — контакт, переданный явно.
type ContactRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Name  string `json:"name,omitempty" validate:"omitempty,max=200"`
}

// CreateEnrollmentRequest — запрос на запись контакта.
// Нужен хотя бы один из lead_id, customer_id, contact.
type CreateEnrollmentRequest struct {
	SequenceID string          `json:"sequence_id" validate:"required,uuid"`
	LeadID     string          `json:"lead_id,omitempty" validate:"omitempty,uuid"`
	CustomerID string          `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	Contact    *ContactRequest `json:"contact,omitempty"`
}

// HasTarget сообщает, указан ли кого записывать.
func (r CreateEnrollmentRequest) HasTarget() bool {
	return r.LeadID != "" || r.CustomerID != "" || r.Contact != nil
}

// ToDomain переводит запрос в enrollment.EnrollRequest.
// Вызывается после validateStruct: UUID уже проверены.
func (r CreateEnrollmentRequest) ToDomain() enrollment.EnrollRequest {
	req := enrollment.EnrollRequest{SequenceID: uuid.MustParse(r.SequenceID)}
	if r.LeadID != "" {
		id := uuid.MustParse(r.LeadID)
		req.LeadID = &id
	}
	if r.CustomerID != "" {
		id := uuid.MustParse(r.CustomerID)
		req.CustomerID = &id
	}
	if r.Contact != nil {
		req.Contact = &domain.Contact{
			Email: r.Contact.Email,
			Phone: r.Contact.Phone,
			Name:  r.Contact.Name,
		}
	}
	return req
}

// PauseEnrollmentRequest — запрос на паузу.
type PauseEnrollmentRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// EnrollmentResponse — ответ с enrollment.
type EnrollmentResponse struct {
	ID           uuid.UUID                 `json:"id"`
	SequenceID   uuid.UUID                 `json:"sequence_id"`
	Contact      domain.Contact            `json:"contact"`
	CurrentStep  int                       `json:"current_step"`
	Status       string                    `json:"status"`
	NextActionAt *time.Time                `json:"next_action_at,omitempty"`
	LastActionAt *time.Time                `json:"last_action_at,omitempty"`
	PauseReason  string                    `json:"pause_reason,omitempty"`
	StepHistory  []domain.StepHistoryEntry `json:"step_history,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	CompletedAt  *time.Time                `json:"completed_at,omitempty"`
}

// EnrollmentFromDomain конвертирует domain.Enrollment в EnrollmentResponse.
// История включается только при withHistory.
func EnrollmentFromDomain(e *domain.Enrollment, withHistory bool) EnrollmentResponse {
	resp := EnrollmentResponse{
		ID:           e.ID,
		SequenceID:   e.SequenceID,
		Contact:      e.Contact,
		CurrentStep:  e.CurrentStep,
		Status:       string(e.Status),
		NextActionAt: e.NextActionAt,
		LastActionAt: e.LastActionAt,
		PauseReason:  e.PauseReason,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		CompletedAt:  e.CompletedAt,
	}
	if withHistory {
		resp.StepHistory = e.StepHistory
	}
	return resp
}

// Engine DTOs

// UpdateConfigRequest — частичное обновление настроек планировщика.
// Интервалы передаются строками time.ParseDuration ("15m", "1h30m").
type UpdateConfigRequest struct {
	Enabled             *bool   `json:"enabled,omitempty"`
	AppointmentInterval *string `json:"appointment_interval,omitempty"`
	FullInterval        *string `json:"full_interval,omitempty"`
	AppointmentCron     *string `json:"appointment_cron,omitempty"`
	FullCron            *string `json:"full_cron,omitempty"`
	StartDelay          *string `json:"start_delay,omitempty"`
	BatchSize           *int    `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
}

// ToPatch разбирает интервалы и собирает scheduler.Patch.
func (r UpdateConfigRequest) ToPatch() (scheduler.Patch, error) {
	p := scheduler.Patch{
		Enabled:         r.Enabled,
		AppointmentCron: r.AppointmentCron,
		FullCron:        r.FullCron,
		BatchSize:       r.BatchSize,
	}

	var err error
	if p.AppointmentInterval, err = parseDurationPtr("appointment_interval", r.AppointmentInterval); err != nil {
		return p, err
	}
	if p.FullInterval, err = parseDurationPtr("full_interval", r.FullInterval); err != nil {
		return p, err
	}
	if p.StartDelay, err = parseDurationPtr("start_delay", r.StartDelay); err != nil {
		return p, err
	}
	return p, nil
}

func parseDurationPtr(field string, s *string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

// SettingsResponse — настройки планировщика в читаемом виде.
type SettingsResponse struct {
	Enabled             bool   `json:"enabled"`
	AppointmentInterval string `json:"appointment_interval"`
	FullInterval        string `json:"full_interval"`
	AppointmentCron     string `json:"appointment_cron,omitempty"`
	FullCron            string `json:"full_cron,omitempty"`
	StartDelay          string `json:"start_delay"`
	BatchSize           int    `json:"batch_size"`
}

// SettingsFromScheduler конвертирует scheduler.Settings в SettingsResponse.
func SettingsFromScheduler(s scheduler.Settings) SettingsResponse {
	return SettingsResponse{
		Enabled:             s.Enabled,
		AppointmentInterval: s.AppointmentInterval.String(),
		FullInterval:        s.FullInterval.String(),
		AppointmentCron:     s.AppointmentCron,
		FullCron:            s.FullCron,
		StartDelay:          s.StartDelay.String(),
		BatchSize:           s.BatchSize,
	}
}

// EngineStatusResponse — статус планировщика и его настройки.
type EngineStatusResponse struct {
	scheduler.Status
	Settings SettingsResponse `json:"settings"`
}

// ReminderStatsResponse — статистика напоминаний за период.
type ReminderStatsResponse struct {
	Since time.Time             `json:"since"`
	Total int                   `json:"total"`
	Stats []domain.ReminderStat `json:"stats"`
}
