package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/repo"
)

// Sequences — in-memory SequenceRepository.
type Sequences struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Sequence
}

// NewSequences создаёт хранилище с заданными последовательностями.
func NewSequences(seqs ...*domain.Sequence) *Sequences {
	s := &Sequences{byID: make(map[uuid.UUID]domain.Sequence)}
	for _, seq := range seqs {
		s.Put(seq)
	}
	return s
}

// Put сохраняет последовательность.
func (s *Sequences) Put(seq *domain.Sequence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[seq.ID] = *seq
}

// SetActive меняет флаг активности.
func (s *Sequences) SetActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.byID[id]
	seq.IsActive = active
	s.byID[id] = seq
}

func (s *Sequences) Get(ctx context.Context, id uuid.UUID) (*domain.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &seq, nil
}

// Enrollments — in-memory хранилище enrollments.
type Enrollments struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Enrollment

	// UpdateErr — ошибка, которую вернёт Update для конкретного enrollment.
	UpdateErr map[uuid.UUID]error

	// FindErr — ошибка FindDue.
	FindErr error
}

// NewEnrollments создаёт пустое хранилище.
func NewEnrollments() *Enrollments {
	return &Enrollments{
		byID:      make(map[uuid.UUID]*domain.Enrollment),
		UpdateErr: make(map[uuid.UUID]error),
	}
}

// Add сохраняет enrollment как есть.
func (s *Enrollments) Add(e *domain.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[e.ID] = copyEnrollment(e)
}

// Snapshot возвращает сохранённое состояние.
func (s *Enrollments) Snapshot(id uuid.UUID) domain.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return *copyEnrollment(e)
	}
	return domain.Enrollment{}
}

func (s *Enrollments) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	var due []domain.Enrollment
	for _, e := range s.byID {
		if e.IsDue(now) {
			due = append(due, *copyEnrollment(e))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].NextActionAt, due[j].NextActionAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Enrollments) Update(ctx context.Context, e *domain.Enrollment, entry domain.StepHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateErr[e.ID]; err != nil {
		return err
	}
	stored, ok := s.byID[e.ID]
	if !ok {
		return repo.ErrNotFound
	}

	history := append(stored.StepHistory, entry)
	updated := copyEnrollment(e)
	updated.StepHistory = history
	s.byID[e.ID] = updated
	return nil
}

func (s *Enrollments) AppendHistory(ctx context.Context, id uuid.UUID, entry domain.StepHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	stored.StepHistory = append(stored.StepHistory, entry)
	return nil
}

func (s *Enrollments) Create(ctx context.Context, e *domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; ok {
		return repo.ErrAlreadyExists
	}
	s.byID[e.ID] = copyEnrollment(e)
	return nil
}

func (s *Enrollments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyEnrollment(e), nil
}

func (s *Enrollments) ListBySequence(ctx context.Context, sequenceID uuid.UUID, limit int) ([]domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Enrollment
	for _, e := range s.byID {
		if e.SequenceID == sequenceID {
			out = append(out, *copyEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Enrollments) HasOpen(ctx context.Context, sequenceID uuid.UUID, contact domain.Contact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byID {
		if e.SequenceID != sequenceID || e.Status.IsTerminal() {
			continue
		}
		if sameContact(e.Contact, contact) {
			return true, nil
		}
	}
	return false, nil
}

func sameContact(a, b domain.Contact) bool {
	switch {
	case a.LeadID != nil && b.LeadID != nil:
		return *a.LeadID == *b.LeadID
	case a.CustomerID != nil && b.CustomerID != nil:
		return *a.CustomerID == *b.CustomerID
	default:
		return a.Email != "" && a.Email == b.Email
	}
}

func copyEnrollment(e *domain.Enrollment) *domain.Enrollment {
	c := *e
	c.StepHistory = append([]domain.StepHistoryEntry(nil), e.StepHistory...)
	if e.NextActionAt != nil {
		t := *e.NextActionAt
		c.NextActionAt = &t
	}
	if e.LastActionAt != nil {
		t := *e.LastActionAt
		c.LastActionAt = &t
	}
	return &c
}

// ReminderLog — in-memory журнал напоминаний.
type ReminderLog struct {
	mu      sync.Mutex
	entries []domain.ReminderLogEntry

	// ExistsErr — ошибка Exists.
	ExistsErr error
}

// NewReminderLog создаёт пустой журнал.
func NewReminderLog() *ReminderLog {
	return &ReminderLog{}
}

func (l *ReminderLog) Exists(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, kind domain.ReminderKind, since time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ExistsErr != nil {
		return false, l.ExistsErr
	}
	for _, e := range l.entries {
		if e.EntityID == entityID && e.EntityType == entityType && e.Kind == kind && !e.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (l *ReminderLog) Insert(ctx context.Context, entry *domain.ReminderLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *ReminderLog) Stats(ctx context.Context, since time.Time) ([]domain.ReminderStat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	type key struct {
		t domain.EntityType
		k domain.ReminderKind
	}
	agg := make(map[key]*domain.ReminderStat)
	var order []key
	for _, e := range l.entries {
		if e.SentAt.Before(since) {
			continue
		}
		k := key{e.EntityType, e.Kind}
		st, ok := agg[k]
		if !ok {
			st = &domain.ReminderStat{EntityType: e.EntityType, Kind: e.Kind}
			agg[k] = st
			order = append(order, k)
		}
		st.Count++
		sentAt := e.SentAt
		if st.LastSentAt == nil || sentAt.After(*st.LastSentAt) {
			st.LastSentAt = &sentAt
		}
	}

	out := make([]domain.ReminderStat, 0, len(order))
	for _, k := range order {
		out = append(out, *agg[k])
	}
	return out, nil
}

// Entries возвращает копию журнала.
func (l *ReminderLog) Entries() []domain.ReminderLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ReminderLogEntry(nil), l.entries...)
}

// Targets — in-memory источник appointment/lead/invoice.
type Targets struct {
	mu               sync.Mutex
	Appointments     []domain.Appointment
	Leads            []domain.Lead
	Invoices         []domain.Invoice
	LeadContacts     map[uuid.UUID]domain.Contact
	CustomerContacts map[uuid.UUID]domain.Contact
	CustomerUsers    map[uuid.UUID]uuid.UUID
	Users            map[uuid.UUID]domain.User
}

// NewTargets создаёт пустой источник.
func NewTargets() *Targets {
	return &Targets{
		LeadContacts:     make(map[uuid.UUID]domain.Contact),
		CustomerContacts: make(map[uuid.UUID]domain.Contact),
		CustomerUsers:    make(map[uuid.UUID]uuid.UUID),
		Users:            make(map[uuid.UUID]domain.User),
	}
}

func (t *Targets) AppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Appointment
	for _, a := range t.Appointments {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *Targets) StaleLeads(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Lead, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Lead
	for _, l := range t.Leads {
		if l.Status == domain.LeadStatusNew && l.CreatedAt.Before(createdBefore) {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *Targets) OverdueInvoices(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range t.Invoices {
		if inv.Status == domain.InvoiceStatusSent && inv.DueDate.Before(now) {
			out = append(out, inv)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *Targets) LeadContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.LeadContacts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (t *Targets) CustomerContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.CustomerContacts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (t *Targets) CustomerUserID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.CustomerUsers[customerID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (t *Targets) User(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.Users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

// Templates — in-memory TemplateSource.
type Templates map[string]domain.MessageTemplate

func (t Templates) GetTemplate(ctx context.Context, ref string) (*domain.MessageTemplate, error) {
	tmpl, ok := t[ref]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &tmpl, nil
}
