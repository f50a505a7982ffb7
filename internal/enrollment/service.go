package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/repo"
)

// Store — полное хранилище enrollments для Service.
type Store interface {
	EnrollmentRepository

	Create(ctx context.Context, e *domain.Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	ListBySequence(ctx context.Context, sequenceID uuid.UUID, limit int) ([]domain.Enrollment, error)

	// HasOpen проверяет, есть ли незавершённый enrollment этого контакта.
	HasOpen(ctx context.Context, sequenceID uuid.UUID, contact domain.Contact) (bool, error)
}

// ContactDirectory — поиск контактов по лиду или клиенту.
type ContactDirectory interface {
	LeadContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	CustomerContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
}

// EnrollRequest — запрос на запись контакта.
//
// Контакт берётся из лида, иначе из клиента, иначе из Contact.
// Явно переданные поля Contact дополняют найденный контакт.
type EnrollRequest struct {
	SequenceID uuid.UUID       `json:"sequence_id"`
	LeadID     *uuid.UUID      `json:"lead_id,omitempty"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	Contact    *domain.Contact `json:"contact,omitempty"`
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	Enrollments Store
	Sequences   SequenceRepository
	Contacts    ContactDirectory
	Events      EventPublisher
	Now         func() time.Time
	Logger      *slog.Logger
}

// Service — операции жизненного цикла enrollments.
type Service struct {
	enrollments Store
	sequences   SequenceRepository
	contacts    ContactDirectory
	events      EventPublisher
	now         func() time.Time
	logger      *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		enrollments: cfg.Enrollments,
		sequences:   cfg.Sequences,
		contacts:    cfg.Contacts,
		events:      cfg.Events,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Enroll записывает контакт в последовательность.
//
// Первый шаг становится должным через свою задержку от текущего момента.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*domain.Enrollment, error) {
	seq, err := s.sequences.Get(ctx, req.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	if !seq.IsActive {
		return nil, ErrSequenceInactive
	}
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSequenceInvalid, err)
	}

	contact, err := s.resolveContact(ctx, req)
	if err != nil {
		return nil, err
	}

	open, err := s.enrollments.HasOpen(ctx, seq.ID, contact)
	if err != nil {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if open {
		return nil, ErrAlreadyEnrolled
	}

	e := domain.NewEnrollment(seq, contact, s.now())
	if err := s.enrollments.Create(ctx, e); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	s.publish(ctx, e, e.StepHistory[len(e.StepHistory)-1])
	s.logger.Info("contact enrolled",
		"enrollment_id", e.ID,
		"sequence_id", seq.ID,
		"next_action_at", e.NextActionAt,
	)
	return e, nil
}

func (s *Service) resolveContact(ctx context.Context, req EnrollRequest) (domain.Contact, error) {
	var contact domain.Contact

	switch {
	case req.LeadID != nil && s.contacts != nil:
		c, err := s.contacts.LeadContact(ctx, *req.LeadID)
		if err != nil {
			return contact, fmt.Errorf("get lead contact: %w", err)
		}
		contact = *c
		contact.LeadID = req.LeadID
	case req.CustomerID != nil && s.contacts != nil:
		c, err := s.contacts.CustomerContact(ctx, *req.CustomerID)
		if err != nil {
			return contact, fmt.Errorf("get customer contact: %w", err)
		}
		contact = *c
		contact.CustomerID = req.CustomerID
	}

	if req.Contact != nil {
		contact = mergeContact(contact, *req.Contact)
	}
	if contact.IsEmpty() && contact.UserID == nil {
		return contact, ErrNoContact
	}
	return contact, nil
}

func mergeContact(base, over domain.Contact) domain.Contact {
	if over.Email != "" {
		base.Email = over.Email
	}
	if over.Phone != "" {
		base.Phone = over.Phone
	}
	if over.Name != "" {
		base.Name = over.Name
	}
	if over.LeadID != nil {
		base.LeadID = over.LeadID
	}
	if over.CustomerID != nil {
		base.CustomerID = over.CustomerID
	}
	if over.UserID != nil {
		base.UserID = over.UserID
	}
	return base
}

// Get возвращает enrollment по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	return s.enrollments.GetByID(ctx, id)
}

// List возвращает enrollments последовательности.
func (s *Service) List(ctx context.Context, sequenceID uuid.UUID, limit int) ([]domain.Enrollment, error) {
	return s.enrollments.ListBySequence(ctx, sequenceID, limit)
}

// Pause приостанавливает enrollment.
func (s *Service) Pause(ctx context.Context, id uuid.UUID, reason string) (*domain.Enrollment, error) {
	if reason == "" {
		reason = "paused manually"
	}
	return s.transition(ctx, id, func(e *domain.Enrollment, now time.Time) (domain.StepHistoryEntry, error) {
		return e.Pause(reason, now)
	})
}

// Resume возобновляет enrollment. Текущий шаг выполнится на ближайшем тике.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	return s.transition(ctx, id, func(e *domain.Enrollment, now time.Time) (domain.StepHistoryEntry, error) {
		return e.Resume(now)
	})
}

// Cancel отменяет enrollment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	return s.transition(ctx, id, func(e *domain.Enrollment, now time.Time) (domain.StepHistoryEntry, error) {
		return e.Cancel(now)
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*domain.Enrollment, time.Time) (domain.StepHistoryEntry, error)) (*domain.Enrollment, error) {
	e, err := s.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, err := apply(e, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: enrollment is %s", err, e.Status)
	}

	if err := s.enrollments.Update(ctx, e, entry); err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}

	s.publish(ctx, e, entry)
	s.logger.Info("enrollment updated",
		"enrollment_id", e.ID,
		"outcome", entry.Outcome,
		"status", e.Status,
	)
	return e, nil
}

func (s *Service) publish(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEnrollmentEvent(ctx, domain.NewEnrollmentEvent(e, entry)); err != nil {
		s.logger.Warn("failed to publish enrollment event", "enrollment_id", e.ID, "error", err)
	}
}
