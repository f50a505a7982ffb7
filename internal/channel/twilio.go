package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioConfig — параметры Twilio.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// BaseURL — адрес API. Переопределяется в тестах.
	BaseURL string

	Client *http.Client
}

// TwilioSMS — SMS через REST API Twilio.
type TwilioSMS struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilioSMS создаёт SMS-канал.
func NewTwilioSMS(cfg TwilioConfig) *TwilioSMS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TwilioSMS{cfg: cfg, client: client}
}

// Send отправляет SMS.
func (t *TwilioSMS) Send(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(t.cfg.BaseURL, "/"), t.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrDelivery, err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: twilio: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: twilio HTTP %d: %s", ErrDelivery, resp.StatusCode, truncate(string(respBody), 200))
	}
	return nil
}
