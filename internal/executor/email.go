package executor

import (
	"context"
	"fmt"

	"github.com/badoux/checkmail"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/render"
)

// Тексты письма по умолчанию.
const (
	defaultEmailSubject = "Message from {business_name}"
	defaultEmailBody    = "Hello {first_name},"
)

// EmailAction — шаг типа "email".
//
// Требует email контакта. Пустые тема и тело заменяются текстами по умолчанию.
type EmailAction struct {
	Email channel.Email
}

// Execute отправляет письмо.
func (a *EmailAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	if a.Email == nil {
		return nil, fmt.Errorf("%w: email", ErrChannelNotConfigured)
	}

	to := req.Enrollment.Contact.Email
	if to == "" {
		return nil, ErrNoEmail
	}
	res := &Result{Recipient: to}
	if err := checkmail.ValidateFormat(to); err != nil {
		return res, fmt.Errorf("%w: %s", ErrInvalidEmail, to)
	}

	subject := req.Content.Subject
	if subject == "" {
		subject = render.Render(defaultEmailSubject, req.Vars)
	}
	body := req.Content.Body
	if body == "" {
		body = render.Render(defaultEmailBody, req.Vars)
	}

	if err := a.Email.Send(ctx, to, subject, body); err != nil {
		return res, err
	}
	return res, nil
}
