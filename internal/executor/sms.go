package executor

import (
	"context"
	"fmt"

	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/render"
)

const defaultSMSBody = "Hello from {business_name}!"

// SMSAction — шаг типа "sms".
//
// Текст берётся из SMSBody, если он пуст — из Body, иначе текст по умолчанию.
type SMSAction struct {
	SMS channel.SMS
}

// Execute отправляет SMS.
func (a *SMSAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	if a.SMS == nil {
		return nil, fmt.Errorf("%w: sms", ErrChannelNotConfigured)
	}

	to := req.Enrollment.Contact.Phone
	if to == "" {
		return nil, ErrNoPhone
	}

	body := req.Content.SMSBody
	if body == "" {
		body = req.Content.Body
	}
	if body == "" {
		body = render.Render(defaultSMSBody, req.Vars)
	}

	res := &Result{Recipient: to}
	if err := a.SMS.Send(ctx, to, body); err != nil {
		return res, err
	}
	return res, nil
}
