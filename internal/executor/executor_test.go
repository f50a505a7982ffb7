package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/render"
	"github.com/shaiso/Engage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fakes struct {
	email   *testutil.FakeEmail
	sms     *testutil.FakeSMS
	notify  *testutil.FakeNotification
	webhook *testutil.FakeWebhook
	tasks   *testutil.FakeTasks
}

func newExecutor(t *testing.T, mutate func(*Config)) (*Executor, *fakes) {
	t.Helper()
	f := &fakes{
		email:   &testutil.FakeEmail{},
		sms:     &testutil.FakeSMS{},
		notify:  &testutil.FakeNotification{},
		webhook: &testutil.FakeWebhook{},
		tasks:   &testutil.FakeTasks{},
	}
	cfg := Config{
		Channels: channel.Set{
			Email:        f.email,
			SMS:          f.sms,
			Notification: f.notify,
			Webhook:      f.webhook,
			Tasks:        f.tasks,
		},
		Business: render.Business{Name: "Acme", WebsiteURL: "https://acme.test"},
		Now:      func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), f
}

func input(contact domain.Contact, step domain.Step) *Input {
	owner := uuid.New()
	seq := &domain.Sequence{ID: uuid.New(), OwnerID: &owner, IsActive: true, Steps: []domain.Step{step}}
	e := domain.NewEnrollment(seq, contact, fixedNow)
	return &Input{Enrollment: e, Sequence: seq, Step: &seq.Steps[0]}
}

func TestExecute_EmailRendersVariables(t *testing.T) {
	exec, f := newExecutor(t, nil)
	in := input(
		domain.Contact{Email: "jane@example.com", Name: "Jane Doe"},
		domain.Step{
			ActionType: domain.ActionEmail,
			Variables:  map[string]string{"offer": "20% off"},
			Content: domain.StepContent{
				Subject: "Hi {first_name}",
				Body:    "<p>{offer} at {business_name}, {unknown}</p>",
			},
		},
	)

	res := exec.Execute(context.Background(), in)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.ActionEmail, res.Channel)
	assert.Equal(t, "jane@example.com", res.Recipient)
	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "Hi Jane", f.email.Sent[0].Subject)
	assert.Equal(t, "<p>20% off at Acme, {unknown}</p>", f.email.Sent[0].HTML)
}

func TestExecute_EmailFailures(t *testing.T) {
	tests := []struct {
		name    string
		contact domain.Contact
		mutate  func(*Config)
		wantErr error
	}{
		{"no email", domain.Contact{}, nil, ErrNoEmail},
		{"invalid email", domain.Contact{Email: "not-an-email"}, nil, ErrInvalidEmail},
		{"channel missing", domain.Contact{Email: "a@example.com"}, func(c *Config) { c.Channels.Email = nil }, ErrChannelNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, f := newExecutor(t, tt.mutate)
			res := exec.Execute(context.Background(), input(tt.contact, domain.Step{ActionType: domain.ActionEmail}))

			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr.Error())
			assert.Empty(t, f.email.Sent)
		})
	}
}

func TestExecute_EmailDeliveryError(t *testing.T) {
	exec, f := newExecutor(t, nil)
	f.email.Err = errors.New("smtp down")

	res := exec.Execute(context.Background(), input(domain.Contact{Email: "a@example.com"}, domain.Step{ActionType: domain.ActionEmail}))

	assert.False(t, res.Success)
	assert.Equal(t, "smtp down", res.Error)
	assert.Equal(t, "a@example.com", res.Recipient)
}

func TestExecute_SMS(t *testing.T) {
	exec, f := newExecutor(t, nil)

	res := exec.Execute(context.Background(), input(
		domain.Contact{Phone: "+15550001", Name: "Bob"},
		domain.Step{ActionType: domain.ActionSMS, Content: domain.StepContent{Body: "Hey {first_name}"}},
	))
	require.True(t, res.Success, res.Error)
	require.Len(t, f.sms.Sent, 1)
	assert.Equal(t, "Hey Bob", f.sms.Sent[0].Body)

	res = exec.Execute(context.Background(), input(domain.Contact{}, domain.Step{ActionType: domain.ActionSMS}))
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoPhone.Error(), res.Error)
}

func TestExecute_NotificationResolvesCustomerUser(t *testing.T) {
	targets := testutil.NewTargets()
	customerID, userID := uuid.New(), uuid.New()
	targets.CustomerUsers[customerID] = userID

	exec, f := newExecutor(t, func(c *Config) { c.Users = targets })

	res := exec.Execute(context.Background(), input(
		domain.Contact{CustomerID: &customerID},
		domain.Step{ActionType: domain.ActionNotification, Content: domain.StepContent{NotificationTitle: "Welcome", Body: "Body"}},
	))

	require.True(t, res.Success, res.Error)
	require.Len(t, f.notify.Created, 1)
	assert.Equal(t, userID, f.notify.Created[0].UserID)
	assert.Equal(t, NotificationKind, f.notify.Created[0].Kind)
	assert.Equal(t, "Body", f.notify.Created[0].Body)

	res = exec.Execute(context.Background(), input(domain.Contact{Email: "x@example.com"}, domain.Step{ActionType: domain.ActionNotification}))
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoUserID.Error(), res.Error)
}

func TestExecute_TaskForOwner(t *testing.T) {
	exec, f := newExecutor(t, nil)
	in := input(domain.Contact{Name: "Jane Doe"}, domain.Step{ActionType: domain.ActionTask})

	res := exec.Execute(context.Background(), in)

	require.True(t, res.Success, res.Error)
	require.Len(t, f.tasks.Created, 1)
	assert.Equal(t, *in.Sequence.OwnerID, f.tasks.Created[0].OwnerID)
	assert.Equal(t, "Follow-up Task", f.tasks.Created[0].Title)
	assert.Equal(t, "Follow up with Jane Doe", f.tasks.Created[0].Description)
	assert.Empty(t, f.email.Sent)

	in.Sequence.OwnerID = nil
	res = exec.Execute(context.Background(), in)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoOwner.Error(), res.Error)
}

func TestExecute_EmptyContentDefaults(t *testing.T) {
	exec, f := newExecutor(t, nil)
	userID := uuid.New()
	contact := domain.Contact{Email: "jane@example.com", Phone: "+15550001", Name: "Jane Doe", UserID: &userID}

	for _, action := range []domain.ActionType{domain.ActionEmail, domain.ActionSMS, domain.ActionNotification, domain.ActionTask} {
		res := exec.Execute(context.Background(), input(contact, domain.Step{ActionType: action}))
		require.True(t, res.Success, "%s: %s", action, res.Error)
	}

	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "Message from Acme", f.email.Sent[0].Subject)
	assert.Equal(t, "Hello Jane,", f.email.Sent[0].HTML)

	require.Len(t, f.sms.Sent, 1)
	assert.Equal(t, "Hello from Acme!", f.sms.Sent[0].Body)

	require.Len(t, f.notify.Created, 1)
	assert.Equal(t, "Notification", f.notify.Created[0].Title)

	require.Len(t, f.tasks.Created, 1)
	assert.Equal(t, "Follow-up Task", f.tasks.Created[0].Title)
	assert.Equal(t, "Follow up with Jane Doe", f.tasks.Created[0].Description)
}

func TestExecute_WebhookEnvelope(t *testing.T) {
	exec, f := newExecutor(t, nil)
	leadID := uuid.New()
	in := input(
		domain.Contact{Email: "jane@example.com", Phone: "+1", Name: "Jane", LeadID: &leadID},
		domain.Step{
			ActionType:     domain.ActionWebhook,
			WebhookURL:     "https://hooks.test/in",
			WebhookHeaders: map[string]string{"X-Token": "abc"},
			WebhookData:    map[string]any{"campaign": "spring", "greeting": "hi {first_name}"},
		},
	)

	res := exec.Execute(context.Background(), in)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 200, res.StatusCode)
	require.Len(t, f.webhook.Posted, 1)
	posted := f.webhook.Posted[0]
	assert.Equal(t, "https://hooks.test/in", posted.URL)
	assert.Equal(t, "abc", posted.Headers["X-Token"])
	assert.Equal(t, in.Enrollment.ID.String(), posted.Body["enrollment_id"])
	assert.Equal(t, leadID.String(), posted.Body["lead_id"])
	assert.Nil(t, posted.Body["customer_id"])
	assert.Equal(t, "jane@example.com", posted.Body["contact_email"])
	assert.Equal(t, float64(0), posted.Body["step_number"])
	assert.Equal(t, "2024-03-01T10:00:00Z", posted.Body["timestamp"])
	assert.Equal(t, "spring", posted.Body["campaign"])
	assert.Equal(t, "hi Jane", posted.Body["greeting"])
}

func TestExecute_WebhookFailures(t *testing.T) {
	exec, f := newExecutor(t, nil)

	res := exec.Execute(context.Background(), input(domain.Contact{}, domain.Step{ActionType: domain.ActionWebhook}))
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoWebhookURL.Error(), res.Error)

	f.webhook.StatusCode = 500
	f.webhook.Err = errors.New("HTTP 500")
	res = exec.Execute(context.Background(), input(domain.Contact{}, domain.Step{ActionType: domain.ActionWebhook, WebhookURL: "https://hooks.test"}))
	assert.False(t, res.Success)
	assert.Equal(t, 500, res.StatusCode)
}

func TestExecute_UnknownActionIsFailure(t *testing.T) {
	exec, _ := newExecutor(t, nil)

	res := exec.Execute(context.Background(), input(domain.Contact{}, domain.Step{ActionType: "fax"}))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrUnknownAction.Error())
}

type panicAction struct{}

func (panicAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	panic("boom")
}

func TestExecute_RecoversPanic(t *testing.T) {
	exec, _ := newExecutor(t, nil)
	exec.Register(domain.ActionEmail, panicAction{})

	res := exec.Execute(context.Background(), input(domain.Contact{Email: "a@example.com"}, domain.Step{ActionType: domain.ActionEmail}))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
}

func TestExecute_TemplateRef(t *testing.T) {
	templates := testutil.Templates{
		"welcome": {Ref: "welcome", Content: domain.StepContent{Subject: "Welcome {first_name}", Body: "Template body"}},
	}
	exec, f := newExecutor(t, func(c *Config) { c.Templates = templates })

	res := exec.Execute(context.Background(), input(
		domain.Contact{Email: "jane@example.com", Name: "Jane"},
		domain.Step{ActionType: domain.ActionEmail, TemplateRef: "welcome", Content: domain.StepContent{Body: "Inline body"}},
	))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Welcome Jane", f.email.Sent[0].Subject)
	assert.Equal(t, "Inline body", f.email.Sent[0].HTML)

	res = exec.Execute(context.Background(), input(
		domain.Contact{Email: "jane@example.com"},
		domain.Step{ActionType: domain.ActionEmail, TemplateRef: "missing"},
	))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrTemplateNotFound.Error())
}
