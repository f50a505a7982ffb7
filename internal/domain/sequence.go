package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType — тип действия шага (канал доставки).
type ActionType string

const (
	// ActionEmail — письмо контакту.
	ActionEmail ActionType = "email"

	// ActionSMS — SMS контакту.
	ActionSMS ActionType = "sms"

	// ActionNotification — уведомление внутри приложения.
	ActionNotification ActionType = "in_app_notification"

	// ActionTask — внутренняя задача для владельца последовательности.
	// Клиенту ничего не отправляется.
	ActionTask ActionType = "task"

	// ActionWebhook — POST JSON на внешний URL.
	ActionWebhook ActionType = "webhook"
)

// IsValid проверяет, что тип действия известен.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionEmail, ActionSMS, ActionNotification, ActionTask, ActionWebhook:
		return true
	default:
		return false
	}
}

// Sequence — шаблон drip-последовательности.
//
// Шаги выполняются строго по порядку, между шагами выдерживается
// Step.DelaySec. Флаг IsActive проверяется в момент выполнения каждого шага:
// деактивация последовательности ставит все её enrollments на паузу.
type Sequence struct {
	// ID — уникальный идентификатор последовательности.
	ID uuid.UUID `json:"id"`

	// OwnerID — пользователь-владелец. Получатель шагов типа task.
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`

	// Name — имя последовательности.
	Name string `json:"name"`

	// IsActive — флаг активности.
	IsActive bool `json:"is_active"`

	// Steps — упорядоченный список шагов.
	Steps []Step `json:"steps"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Len возвращает количество шагов.
func (s *Sequence) Len() int {
	return len(s.Steps)
}

// StepAt возвращает шаг по индексу.
func (s *Sequence) StepAt(i int) (*Step, bool) {
	if i < 0 || i >= len(s.Steps) {
		return nil, false
	}
	return &s.Steps[i], true
}

// Validate проверяет, что в последовательность можно записывать контакты.
func (s *Sequence) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("sequence %s has no steps", s.ID)
	}
	for i, step := range s.Steps {
		if !step.ActionType.IsValid() {
			return fmt.Errorf("step %d: unknown action type %q", i, step.ActionType)
		}
		if step.DelaySec < 0 {
			return fmt.Errorf("step %d: negative delay", i)
		}
	}
	return nil
}

// Step — один шаг последовательности.
type Step struct {
	// Index — порядковый номер шага (с 0).
	Index int `json:"index"`

	// ActionType — канал доставки.
	ActionType ActionType `json:"action_type"`

	// DelaySec — задержка перед шагом относительно предыдущего (в секундах).
	// Для первого шага — относительно момента записи.
	DelaySec int `json:"delay_sec"`

	// TemplateRef — ссылка на сохранённый шаблон сообщения.
	TemplateRef string `json:"template_ref,omitempty"`

	// Variables — статические переменные шага.
	// Перекрывают переменные контакта при подстановке.
	Variables map[string]string `json:"variables,omitempty"`

	// Content — содержимое сообщения. Непустые поля перекрывают шаблон.
	Content StepContent `json:"content"`

	// WebhookURL — адрес для шагов типа webhook.
	WebhookURL string `json:"webhook_url,omitempty"`

	// WebhookHeaders — дополнительные заголовки webhook-запроса.
	WebhookHeaders map[string]string `json:"webhook_headers,omitempty"`

	// WebhookData — дополнительные поля, добавляемые в тело webhook-запроса.
	WebhookData map[string]any `json:"webhook_data,omitempty"`
}

// Delay возвращает задержку шага.
func (s *Step) Delay() time.Duration {
	return time.Duration(s.DelaySec) * time.Second
}

// StepContent — тексты шага для всех каналов.
//
// Поддерживаются плейсхолдеры вида {first_name}.
type StepContent struct {
	Subject           string `json:"subject,omitempty"`
	Body              string `json:"body,omitempty"`
	SMSBody           string `json:"sms_body,omitempty"`
	NotificationTitle string `json:"notification_title,omitempty"`
	NotificationBody  string `json:"notification_body,omitempty"`
	TaskTitle         string `json:"task_title,omitempty"`
	TaskDescription   string `json:"task_description,omitempty"`
}

// Merge возвращает копию шаблона, где непустые поля override перекрывают поля c.
func (c StepContent) Merge(override StepContent) StepContent {
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	return StepContent{
		Subject:           pick(c.Subject, override.Subject),
		Body:              pick(c.Body, override.Body),
		SMSBody:           pick(c.SMSBody, override.SMSBody),
		NotificationTitle: pick(c.NotificationTitle, override.NotificationTitle),
		NotificationBody:  pick(c.NotificationBody, override.NotificationBody),
		TaskTitle:         pick(c.TaskTitle, override.TaskTitle),
		TaskDescription:   pick(c.TaskDescription, override.TaskDescription),
	}
}

// MessageTemplate — сохранённый шаблон, на который ссылается Step.TemplateRef.
type MessageTemplate struct {
	Ref       string      `json:"ref"`
	Content   StepContent `json:"content"`
	UpdatedAt time.Time   `json:"updated_at"`
}
