package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultWebhookTimeout = 30 * time.Second

// Заголовки подписи исходящих webhook-запросов.
const (
	HeaderTimestamp = "X-Engage-Timestamp"
	HeaderSignature = "X-Engage-Signature"
)

// HTTPWebhookConfig — настройки HTTPWebhook.
type HTTPWebhookConfig struct {
	// Client — HTTP-клиент. По умолчанию клиент с таймаутом 30s.
	Client *http.Client

	// SigningSecret — секрет HMAC-SHA256. Пусто — запросы не подписываются.
	SigningSecret string

	// Now — часы. По умолчанию time.Now.
	Now func() time.Time
}

// HTTPWebhook — Webhook через net/http.
type HTTPWebhook struct {
	client *http.Client
	secret string
	now    func() time.Time
}

// NewHTTPWebhook создаёт webhook-канал.
func NewHTTPWebhook(cfg HTTPWebhookConfig) *HTTPWebhook {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &HTTPWebhook{client: client, secret: cfg.SigningSecret, now: now}
}

// Post отправляет JSON body на url.
func (w *HTTPWebhook) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrDelivery, err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, val := range headers {
		req.Header.Set(key, val)
	}
	if w.secret != "" {
		ts := strconv.FormatInt(w.now().Unix(), 10)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, SignHex(w.secret, ts, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("%w: HTTP %d: %s", ErrDelivery, resp.StatusCode, truncate(string(respBody), 200))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// SignHex вычисляет hex HMAC-SHA256 от "<ts>.<body>".
func SignHex(secret, timestamp string, body []byte) string {
	msg := make([]byte, 0, len(timestamp)+1+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, '.')
	msg = append(msg, body...)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
