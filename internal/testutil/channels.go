package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
)

// SentEmail — письмо, принятое FakeEmail.
type SentEmail struct {
	To      string
	Subject string
	HTML    string
}

// FakeEmail записывает письма. Err возвращается на каждый вызов,
// FailFor — только для указанных адресов.
type FakeEmail struct {
	mu      sync.Mutex
	Sent    []SentEmail
	Err     error
	FailFor map[string]error
	Calls   int
}

func (f *FakeEmail) Send(ctx context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if err := f.FailFor[to]; err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, SentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

// SentTo возвращает письма на адрес.
func (f *FakeEmail) SentTo(to string) []SentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentEmail
	for _, m := range f.Sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

// Count возвращает количество успешно отправленных писем.
func (f *FakeEmail) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// SentSMS — SMS, принятое FakeSMS.
type SentSMS struct {
	To   string
	Body string
}

// FakeSMS записывает SMS.
type FakeSMS struct {
	mu   sync.Mutex
	Sent []SentSMS
	Err  error
}

func (f *FakeSMS) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, SentSMS{To: to, Body: body})
	return nil
}

// Count возвращает количество отправленных SMS.
func (f *FakeSMS) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// CreatedNotification — уведомление, принятое FakeNotification.
type CreatedNotification struct {
	UserID uuid.UUID
	Kind   string
	Title  string
	Body   string
}

// FakeNotification записывает уведомления.
type FakeNotification struct {
	mu      sync.Mutex
	Created []CreatedNotification
	Err     error
}

func (f *FakeNotification) Create(ctx context.Context, userID uuid.UUID, kind, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Created = append(f.Created, CreatedNotification{UserID: userID, Kind: kind, Title: title, Body: body})
	return nil
}

// Count возвращает количество созданных уведомлений.
func (f *FakeNotification) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

// PostedWebhook — запрос, принятый FakeWebhook.
type PostedWebhook struct {
	URL     string
	Headers map[string]string
	Body    map[string]any
}

// FakeWebhook записывает запросы и отвечает StatusCode (по умолчанию 200).
type FakeWebhook struct {
	mu         sync.Mutex
	Posted     []PostedWebhook
	StatusCode int
	Err        error
}

func (f *FakeWebhook) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	f.Posted = append(f.Posted, PostedWebhook{URL: url, Headers: headers, Body: decoded})

	code := f.StatusCode
	if code == 0 {
		code = 200
	}
	return code, f.Err
}

// FakeTasks записывает задачи.
type FakeTasks struct {
	mu      sync.Mutex
	Created []domain.FollowUpTask
	Err     error
}

func (f *FakeTasks) CreateFollowUp(ctx context.Context, task *domain.FollowUpTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Created = append(f.Created, *task)
	return nil
}
