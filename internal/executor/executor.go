package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/render"
)

// Input — всё, что нужно для выполнения одного шага.
type Input struct {
	Enrollment *domain.Enrollment
	Sequence   *domain.Sequence
	Step       *domain.Step
}

// Result — единообразный результат шага.
type Result struct {
	Success    bool              `json:"success"`
	Channel    domain.ActionType `json:"channel"`
	Recipient  string            `json:"recipient,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Detail возвращает текст для записи в историю шагов.
func (r *Result) Detail() string {
	if !r.Success {
		return r.Error
	}
	if r.Recipient != "" {
		return "sent to " + r.Recipient
	}
	return "ok"
}

// Request — подготовленные данные для Action.
type Request struct {
	Input

	// Content — тексты шага после подстановки переменных.
	Content domain.StepContent

	// Vars — переменные, использованные при рендеринге.
	Vars render.Vars

	// Now — момент выполнения.
	Now time.Time
}

// Action — обработчик конкретного типа шага.
//
// Возвращённая error превращается в неуспешный Result.
type Action interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// TemplateSource — хранилище сохранённых шаблонов.
type TemplateSource interface {
	GetTemplate(ctx context.Context, ref string) (*domain.MessageTemplate, error)
}

// UserDirectory — поиск внутреннего пользователя по клиенту.
type UserDirectory interface {
	CustomerUserID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error)
}

// Config — конфигурация Executor.
type Config struct {
	// Channels — каналы доставки. Nil-поля означают, что канал не настроен.
	Channels channel.Set

	// Templates — источник шаблонов (опционально).
	Templates TemplateSource

	// Users — поиск user id для in-app уведомлений (опционально).
	Users UserDirectory

	// Business — реквизиты для {business_name} и {website_url}.
	Business render.Business

	// Now — часы. По умолчанию time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Executor выполняет шаги, выбирая Action по типу шага.
type Executor struct {
	actions   map[domain.ActionType]Action
	templates TemplateSource
	business  render.Business
	now       func() time.Time
	logger    *slog.Logger
}

// New создаёт Executor с Action'ами по умолчанию для всех типов шагов.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Executor{
		actions:   make(map[domain.ActionType]Action),
		templates: cfg.Templates,
		business:  cfg.Business,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	e.Register(domain.ActionEmail, &EmailAction{Email: cfg.Channels.Email})
	e.Register(domain.ActionSMS, &SMSAction{SMS: cfg.Channels.SMS})
	e.Register(domain.ActionNotification, &NotificationAction{Notification: cfg.Channels.Notification, Users: cfg.Users})
	e.Register(domain.ActionTask, &TaskAction{Tasks: cfg.Channels.Tasks})
	e.Register(domain.ActionWebhook, &WebhookAction{Webhook: cfg.Channels.Webhook})
	return e
}

// Register добавляет или заменяет Action для типа шага.
func (e *Executor) Register(actionType domain.ActionType, action Action) {
	e.actions[actionType] = action
}

// Get возвращает Action для типа шага.
func (e *Executor) Get(actionType domain.ActionType) (Action, error) {
	action, ok := e.actions[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}
	return action, nil
}

// Execute выполняет шаг. Никогда не паникует и не возвращает error:
// любые проблемы отражаются в Result.
func (e *Executor) Execute(ctx context.Context, in *Input) (res *Result) {
	actionType := in.Step.ActionType
	logger := e.logger.With(
		"enrollment_id", in.Enrollment.ID,
		"step_index", in.Enrollment.CurrentStep,
		"action_type", actionType,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("action panicked", "panic", r)
			res = failure(actionType, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	action, err := e.Get(actionType)
	if err != nil {
		logger.Warn("unknown action type")
		return failure(actionType, err)
	}

	req, err := e.prepare(ctx, in)
	if err != nil {
		return failure(actionType, err)
	}

	result, err := action.Execute(ctx, req)
	if err != nil {
		logger.Warn("step failed", "error", err)
		f := failure(actionType, err)
		if result != nil {
			f.Recipient = result.Recipient
			f.StatusCode = result.StatusCode
		}
		return f
	}

	result.Success = true
	result.Channel = actionType
	logger.Debug("step executed", "recipient", result.Recipient)
	return result
}

// prepare разрешает шаблон и рендерит тексты шага.
func (e *Executor) prepare(ctx context.Context, in *Input) (*Request, error) {
	content := in.Step.Content
	if in.Step.TemplateRef != "" && e.templates != nil {
		tmpl, err := e.templates.GetTemplate(ctx, in.Step.TemplateRef)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, in.Step.TemplateRef, err)
		}
		content = tmpl.Content.Merge(in.Step.Content)
	}

	vars := render.ContactVars(in.Enrollment.Contact, e.business).With(in.Step.Variables)

	return &Request{
		Input:   *in,
		Content: render.RenderContent(content, vars),
		Vars:    vars,
		Now:     e.now(),
	}, nil
}

func failure(actionType domain.ActionType, err error) *Result {
	return &Result{
		Success: false,
		Channel: actionType,
		Error:   err.Error(),
	}
}
