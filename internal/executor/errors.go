package executor

import "errors"

// Ошибки выполнения шага. Попадают в Result.Error.
var (
	// ErrUnknownAction — нет Action для данного типа шага.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrChannelNotConfigured — канал доставки не настроен.
	ErrChannelNotConfigured = errors.New("channel not configured")

	// ErrNoEmail — у контакта нет email.
	ErrNoEmail = errors.New("no email address")

	// ErrInvalidEmail — email не прошёл проверку формата.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrNoPhone — у контакта нет телефона.
	ErrNoPhone = errors.New("no phone number")

	// ErrNoUserID — не удалось определить пользователя для уведомления.
	ErrNoUserID = errors.New("no user id for notification")

	// ErrNoOwner — у последовательности нет владельца.
	ErrNoOwner = errors.New("no owner user id")

	// ErrNoWebhookURL — у шага не задан URL.
	ErrNoWebhookURL = errors.New("no webhook url configured")

	// ErrTemplateNotFound — шаблон по TemplateRef не найден.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrPanic — Action запаниковал.
	ErrPanic = errors.New("action panicked")
)
