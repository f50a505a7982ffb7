package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/render"
)

// WebhookAction — шаг типа "webhook".
//
// Тело запроса:
//
//	{
//	  "enrollment_id": "...",
//	  "lead_id": "...", "customer_id": "...",
//	  "contact_email": "...", "contact_phone": "...", "contact_name": "...",
//	  "step_number": 0,
//	  "timestamp": "2024-03-01T10:00:00Z",
//	  ...webhook_data
//	}
//
// Поля webhook_data рендерятся и добавляются в корень объекта.
type WebhookAction struct {
	Webhook channel.Webhook
}

// Execute отправляет webhook.
func (a *WebhookAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	if a.Webhook == nil {
		return nil, fmt.Errorf("%w: webhook", ErrChannelNotConfigured)
	}

	url := req.Step.WebhookURL
	if url == "" {
		return nil, ErrNoWebhookURL
	}

	body, err := json.Marshal(buildEnvelope(req))
	if err != nil {
		return nil, fmt.Errorf("marshal webhook body: %w", err)
	}

	headers := make(map[string]string, len(req.Step.WebhookHeaders))
	for k, v := range req.Step.WebhookHeaders {
		headers[k] = render.Render(v, req.Vars)
	}

	res := &Result{Recipient: url}
	code, err := a.Webhook.Post(ctx, url, headers, body)
	res.StatusCode = code
	if err != nil {
		return res, err
	}
	return res, nil
}

func buildEnvelope(req *Request) map[string]any {
	e := req.Enrollment
	envelope := map[string]any{
		"enrollment_id": e.ID.String(),
		"lead_id":       nil,
		"customer_id":   nil,
		"contact_email": e.Contact.Email,
		"contact_phone": e.Contact.Phone,
		"contact_name":  e.Contact.Name,
		"step_number":   e.CurrentStep,
		"timestamp":     req.Now.UTC().Format(time.RFC3339),
	}
	if e.Contact.LeadID != nil {
		envelope["lead_id"] = e.Contact.LeadID.String()
	}
	if e.Contact.CustomerID != nil {
		envelope["customer_id"] = e.Contact.CustomerID.String()
	}
	for k, v := range req.Step.WebhookData {
		envelope[k] = render.RenderValue(v, req.Vars)
	}
	return envelope
}
