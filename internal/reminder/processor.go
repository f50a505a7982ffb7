package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/dedup"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/render"
	"github.com/shaiso/Engage/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultLeadStaleAfter = 48 * time.Hour
	DefaultLeadLimit      = 50
	DefaultInvoiceLimit   = 50
)

// Window — окно напоминания о встрече: встречи, начинающиеся
// через [From, To) от текущего момента.
type Window struct {
	Kind domain.ReminderKind `json:"kind" yaml:"kind"`
	From time.Duration       `json:"from" yaml:"from"`
	To   time.Duration       `json:"to" yaml:"to"`

	// When — как окно называется в тексте ("tomorrow", "in 1 hour").
	When string `json:"when" yaml:"when"`

	// ParticipantSMS — отправлять SMS и участникам.
	ParticipantSMS bool `json:"participant_sms" yaml:"participant_sms"`
}

// DefaultWindows — окна 24h и 1h.
func DefaultWindows() []Window {
	return []Window{
		{Kind: domain.ReminderAppointment24h, From: 24 * time.Hour, To: 25 * time.Hour, When: "tomorrow"},
		{Kind: domain.ReminderAppointment1h, From: time.Hour, To: 2 * time.Hour, When: "in 1 hour", ParticipantSMS: true},
	}
}

// TargetSource — read-only источник сущностей для напоминаний.
type TargetSource interface {
	AppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	StaleLeads(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Lead, error)
	OverdueInvoices(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error)
	LeadContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	CustomerContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	User(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// EventPublisher публикует события отправленных напоминаний.
type EventPublisher interface {
	PublishReminderSent(ctx context.Context, evt domain.ReminderEvent) error
}

// Result — счётчики одного прохода.
type Result struct {
	Email         int `json:"email"`
	SMS           int `json:"sms"`
	Notifications int `json:"notifications"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
}

// Add суммирует счётчики.
func (r *Result) Add(other *Result) {
	if other == nil {
		return
	}
	r.Email += other.Email
	r.SMS += other.SMS
	r.Notifications += other.Notifications
	r.Skipped += other.Skipped
	r.Errors += other.Errors
}

// Config — конфигурация Processor.
type Config struct {
	Targets TargetSource
	Dedup   *dedup.Deduplicator

	// Channels — используются Email, SMS и Notification.
	Channels channel.Set

	Events  EventPublisher
	Metrics *telemetry.Metrics

	Business render.Business

	// Windows — окна напоминаний о встречах (default: DefaultWindows()).
	Windows []Window

	// LeadStaleAfter — через сколько лид в статусе new считается забытым (default: 48h).
	LeadStaleAfter time.Duration

	LeadLimit    int
	InvoiceLimit int

	// Location — часовой пояс для дат в текстах (default: UTC).
	Location *time.Location

	Now    func() time.Time
	Logger *slog.Logger
}

// Processor — процессор напоминаний.
type Processor struct {
	targets  TargetSource
	dedup    *dedup.Deduplicator
	channels channel.Set
	events   EventPublisher
	metrics  *telemetry.Metrics
	business render.Business

	windows        []Window
	leadStaleAfter time.Duration
	leadLimit      int
	invoiceLimit   int
	loc            *time.Location

	now    func() time.Time
	logger *slog.Logger
}

// New создаёт Processor.
func New(cfg Config) *Processor {
	if len(cfg.Windows) == 0 {
		cfg.Windows = DefaultWindows()
	}
	if cfg.LeadStaleAfter <= 0 {
		cfg.LeadStaleAfter = DefaultLeadStaleAfter
	}
	if cfg.LeadLimit <= 0 {
		cfg.LeadLimit = DefaultLeadLimit
	}
	if cfg.InvoiceLimit <= 0 {
		cfg.InvoiceLimit = DefaultInvoiceLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		targets:        cfg.Targets,
		dedup:          cfg.Dedup,
		channels:       cfg.Channels,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		business:       cfg.Business,
		windows:        cfg.Windows,
		leadStaleAfter: cfg.LeadStaleAfter,
		leadLimit:      cfg.LeadLimit,
		invoiceLimit:   cfg.InvoiceLimit,
		loc:            cfg.Location,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// ProcessAppointments отправляет напоминания о встречах во всех окнах.
func (p *Processor) ProcessAppointments(ctx context.Context) (*Result, error) {
	res := &Result{}
	now := p.now()

	for _, w := range p.windows {
		appts, err := p.targets.AppointmentsStartingBetween(ctx, now.Add(w.From), now.Add(w.To))
		if err != nil {
			return res, fmt.Errorf("list appointments for %s window: %w", w.Kind, err)
		}

		for i := range appts {
			appt := &appts[i]
			p.guard(res, "appointment_id", appt.ID, func() {
				p.remindAppointment(ctx, appt, w, res)
			})
		}
	}

	p.logger.Info("appointment reminders processed", resultAttrs(res)...)
	return res, nil
}

// ProcessLeadFollowUps уведомляет владельцев о лидах без реакции.
func (p *Processor) ProcessLeadFollowUps(ctx context.Context) (*Result, error) {
	res := &Result{}
	now := p.now()

	leads, err := p.targets.StaleLeads(ctx, now.Add(-p.leadStaleAfter), p.leadLimit)
	if err != nil {
		return res, fmt.Errorf("list stale leads: %w", err)
	}

	for i := range leads {
		lead := &leads[i]
		p.guard(res, "lead_id", lead.ID, func() {
			p.remindLead(ctx, lead, now, res)
		})
	}

	p.logger.Info("lead follow-ups processed", resultAttrs(res)...)
	return res, nil
}

// ProcessPaymentReminders напоминает клиентам о просроченных счетах.
func (p *Processor) ProcessPaymentReminders(ctx context.Context) (*Result, error) {
	res := &Result{}
	now := p.now()

	invoices, err := p.targets.OverdueInvoices(ctx, now, p.invoiceLimit)
	if err != nil {
		return res, fmt.Errorf("list overdue invoices: %w", err)
	}

	for i := range invoices {
		inv := &invoices[i]
		p.guard(res, "invoice_id", inv.ID, func() {
			p.remindInvoice(ctx, inv, now, res)
		})
	}

	p.logger.Info("payment reminders processed", resultAttrs(res)...)
	return res, nil
}

// guard изолирует обработку одной сущности: паника считается ошибкой.
func (p *Processor) guard(res *Result, key string, id uuid.UUID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("reminder panicked", key, id, "panic", r)
			res.Errors++
		}
	}()
	fn()
}

// alreadySent проверяет журнал. Ошибка проверки — сущность пропускается.
func (p *Processor) alreadySent(ctx context.Context, id uuid.UUID, t domain.EntityType, kind domain.ReminderKind, res *Result) bool {
	sent, err := p.dedup.HasBeenSent(ctx, id, t, kind)
	if err != nil {
		p.logger.Error("reminder dedup check failed",
			"entity_id", id,
			"entity_type", t,
			"reminder_kind", kind,
			"error", err,
		)
		res.Errors++
		return true
	}
	if sent {
		res.Skipped++
	}
	return sent
}

func (p *Processor) remindAppointment(ctx context.Context, appt *domain.Appointment, w Window, res *Result) {
	if p.alreadySent(ctx, appt.ID, domain.EntityAppointment, w.Kind, res) {
		return
	}

	contact := p.appointmentContact(ctx, appt)
	start := appt.StartTime.In(p.loc)
	location := appt.Location
	if location == "" {
		location = "TBD"
	}
	base := render.Vars{
		"title":         appt.Title,
		"when":          w.When,
		"date":          start.Format("Monday, January 2"),
		"time":          start.Format("3:04 PM"),
		"location":      location,
		"business_name": p.business.Name,
		"website_url":   p.business.WebsiteURL,
	}

	d := p.newDispatch(ctx, string(w.Kind), res)

	contactVars := render.ContactVars(contact, p.business).With(base)
	if contact.Email != "" {
		d.email(contact.Email, render.Render(appointmentSubject, contactVars), render.Render(appointmentEmail, contactVars))
	}
	if contact.Phone != "" {
		d.sms(contact.Phone, render.Render(appointmentSMS, contactVars))
	}

	for _, pt := range appt.Participants {
		vars := render.ContactVars(domain.Contact{Name: pt.Name, Email: pt.Email, Phone: pt.Phone}, p.business).With(base)
		if pt.Email != "" && pt.Email != contact.Email {
			d.email(pt.Email, render.Render(appointmentParticipantSubject, vars), render.Render(appointmentEmail, vars))
		}
		if w.ParticipantSMS && pt.Phone != "" && pt.Phone != contact.Phone {
			d.sms(pt.Phone, render.Render(appointmentSMS, vars))
		}
	}

	p.finish(ctx, d, appt.ID, domain.EntityAppointment, w.Kind)
}

// appointmentContact собирает контакт встречи: метаданные, затем лид,
// затем клиент. Каждый следующий источник только дополняет пустые поля.
func (p *Processor) appointmentContact(ctx context.Context, appt *domain.Appointment) domain.Contact {
	contact := appt.Contact

	if contact.Email == "" && appt.LeadID != nil {
		if lc, err := p.targets.LeadContact(ctx, *appt.LeadID); err != nil {
			p.logger.Warn("lead contact lookup failed", "appointment_id", appt.ID, "lead_id", *appt.LeadID, "error", err)
		} else {
			contact = fillContact(contact, *lc)
		}
	}
	if contact.Email == "" && appt.CustomerID != nil {
		if cc, err := p.targets.CustomerContact(ctx, *appt.CustomerID); err != nil {
			p.logger.Warn("customer contact lookup failed", "appointment_id", appt.ID, "customer_id", *appt.CustomerID, "error", err)
		} else {
			contact = fillContact(contact, *cc)
		}
	}
	return contact
}

func fillContact(c, from domain.Contact) domain.Contact {
	if c.Email == "" {
		c.Email = from.Email
	}
	if c.Phone == "" {
		c.Phone = from.Phone
	}
	if from.Name != "" {
		c.Name = from.Name
	}
	return c
}

func (p *Processor) remindLead(ctx context.Context, lead *domain.Lead, now time.Time, res *Result) {
	if p.alreadySent(ctx, lead.ID, domain.EntityLead, domain.ReminderLeadFollowUp, res) {
		return
	}
	if lead.OwnerID == nil {
		p.logger.Debug("lead has no owner, skipping follow-up", "lead_id", lead.ID)
		res.Skipped++
		return
	}

	owner, err := p.targets.User(ctx, *lead.OwnerID)
	if err != nil {
		p.logger.Warn("lead owner lookup failed", "lead_id", lead.ID, "error", err)
		res.Errors++
		return
	}

	ownerName := owner.FullName
	if ownerName == "" {
		ownerName = "Team"
	}
	vars := render.Vars{
		"owner_name":   ownerName,
		"lead_name":    lead.Name,
		"lead_email":   lead.Email,
		"lead_phone":   lead.Phone,
		"project_type": lead.ProjectType,
		"days":         strconv.Itoa(daysBetween(lead.CreatedAt, now)),
	}

	d := p.newDispatch(ctx, string(domain.ReminderLeadFollowUp), res)
	if owner.Email != "" {
		d.email(owner.Email, render.Render(leadFollowUpSubject, vars), render.Render(leadFollowUpEmail, vars))
	}
	d.notify(owner.ID, NotificationKindLeadFollowUp, render.Render(leadFollowUpTitle, vars), render.Render(leadFollowUpBody, vars))

	p.finish(ctx, d, lead.ID, domain.EntityLead, domain.ReminderLeadFollowUp)
}

func (p *Processor) remindInvoice(ctx context.Context, inv *domain.Invoice, now time.Time, res *Result) {
	if p.alreadySent(ctx, inv.ID, domain.EntityInvoice, domain.ReminderInvoiceOverdue, res) {
		return
	}

	vars := render.ContactVars(inv.Contact, p.business).With(map[string]string{
		"invoice_number": inv.Number,
		"amount":         formatAmount(inv.TotalCents, inv.Currency),
		"days_overdue":   strconv.Itoa(daysBetween(inv.DueDate, now)),
	})

	d := p.newDispatch(ctx, string(domain.ReminderInvoiceOverdue), res)
	switch {
	case inv.Contact.Email != "":
		d.email(inv.Contact.Email, render.Render(paymentSubject, vars), render.Render(paymentEmail, vars))
	case inv.Contact.Phone != "":
		d.sms(inv.Contact.Phone, render.Render(paymentSMS, vars))
	}

	p.finish(ctx, d, inv.ID, domain.EntityInvoice, domain.ReminderInvoiceOverdue)
}

// finish фиксирует отправку, если хотя бы одна доставка прошла.
func (p *Processor) finish(ctx context.Context, d *dispatch, id uuid.UUID, t domain.EntityType, kind domain.ReminderKind) {
	if d.attempts == 0 {
		p.logger.Debug("no recipients for reminder", "entity_id", id, "entity_type", t, "reminder_kind", kind)
		d.res.Skipped++
		return
	}
	if len(d.delivered) == 0 {
		p.logger.Warn("all reminder deliveries failed, will retry", "entity_id", id, "entity_type", t, "reminder_kind", kind)
		return
	}

	if err := p.dedup.RecordSent(ctx, id, t, kind); err != nil {
		p.logger.Error("failed to record reminder", "entity_id", id, "error", err)
		d.res.Errors++
		return
	}

	if p.events != nil {
		evt := domain.ReminderEvent{
			EntityID:   id,
			EntityType: t,
			Kind:       kind,
			Recipients: d.delivered,
			SentAt:     p.now(),
		}
		if err := p.events.PublishReminderSent(ctx, evt); err != nil {
			p.logger.Warn("failed to publish reminder event", "entity_id", id, "error", err)
		}
	}

	p.logger.Info("reminder sent",
		"entity_id", id,
		"entity_type", t,
		"reminder_kind", kind,
		"recipients", len(d.delivered),
	)
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func resultAttrs(r *Result) []any {
	return []any{
		"email", r.Email,
		"sms", r.SMS,
		"notifications", r.Notifications,
		"skipped", r.Skipped,
		"errors", r.Errors,
	}
}
