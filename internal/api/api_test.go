package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/reminder"
	"github.com/shaiso/Engage/internal/scheduler"
	"github.com/shaiso/Engage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type stubRunner struct{}

func (stubRunner) ProcessDue(ctx context.Context, batchSize int) (*enrollment.Summary, error) {
	return &enrollment.Summary{Due: 1, Advanced: 1}, nil
}

func (stubRunner) ProcessAppointments(ctx context.Context) (*reminder.Result, error) {
	return &reminder.Result{Email: 2}, nil
}

func (stubRunner) ProcessLeadFollowUps(ctx context.Context) (*reminder.Result, error) {
	return &reminder.Result{}, nil
}

func (stubRunner) ProcessPaymentReminders(ctx context.Context) (*reminder.Result, error) {
	return &reminder.Result{SMS: 1}, nil
}

type testEnv struct {
	server    *httptest.Server
	sched     *scheduler.Scheduler
	sequences *testutil.Sequences
	log       *testutil.ReminderLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := scheduler.DefaultSettings()
	st.StartDelay = time.Hour
	sched := scheduler.New(scheduler.Config{Settings: st, Enrollments: stubRunner{}, Reminders: stubRunner{}, Logger: logger})
	t.Cleanup(sched.Stop)

	clock := testutil.NewClock(now)
	seqs := testutil.NewSequences()
	svc := enrollment.NewService(enrollment.ServiceConfig{
		Enrollments: testutil.NewEnrollments(),
		Sequences:   seqs,
		Contacts:    testutil.NewTargets(),
		Now:         clock.Now,
		Logger:      logger,
	})
	rlog := testutil.NewReminderLog()

	h := NewHandler(Config{
		Engine:      sched,
		Enrollments: svc,
		Reminders:   rlog,
		CronSecret:  testSecret,
		Now:         clock.Now,
		Logger:      logger,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, sched: sched, sequences: seqs, log: rlog}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set(CronSecretHeader, testSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func activeSequence() *domain.Sequence {
	return &domain.Sequence{
		ID:       uuid.New(),
		Name:     "welcome",
		IsActive: true,
		Steps: []domain.Step{
			{Index: 0, ActionType: domain.ActionEmail, DelaySec: 3600, Content: domain.StepContent{Subject: "Hi", Body: "Welcome"}},
		},
	}
}

func TestCronSecret(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/engine/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/engine/status", nil)
	req.Header.Set(CronSecretHeader, "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, _ := env.do(t, http.MethodGet, "/api/v1/engine/status", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCronSecret_EmptyRejectsEverything(t *testing.T) {
	h := CronSecret("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CronSecretHeader, "")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CronSecretHeader, "anything")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEngineLifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/engine/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, data(t, body)["running"])

	code, body = env.do(t, http.MethodPost, "/api/v1/engine/start", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(t, body)["running"])
	assert.True(t, env.sched.Running())

	code, body = env.do(t, http.MethodPost, "/api/v1/engine/stop", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, data(t, body)["running"])
}

func TestUpdateEngineConfig(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPut, "/api/v1/engine/config", map[string]any{
		"appointment_interval": "20m",
		"batch_size":           25,
	})
	require.Equal(t, http.StatusOK, code)
	d := data(t, body)
	assert.Equal(t, "20m0s", d["appointment_interval"])
	assert.Equal(t, float64(25), d["batch_size"])
	assert.Equal(t, 20*time.Minute, env.sched.Settings().AppointmentInterval)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty patch", map[string]any{}},
		{"bad duration", map[string]any{"full_interval": "soon"}},
		{"too short", map[string]any{"full_interval": "10ms"}},
		{"bad cron", map[string]any{"full_cron": "every day"}},
		{"batch too large", map[string]any{"batch_size": 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := env.do(t, http.MethodPut, "/api/v1/engine/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
	assert.Equal(t, 20*time.Minute, env.sched.Settings().AppointmentInterval)
}

func TestRunJob(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/engine/run/all", nil)
	require.Equal(t, http.StatusOK, code)
	d := data(t, body)
	assert.Equal(t, "all", d["job"])
	assert.NotNil(t, d["enrollments"])
	assert.NotNil(t, d["appointments"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/engine/run/reports", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = env.do(t, http.MethodGet, "/api/v1/engine/status", nil)
	jobs := data(t, body)["jobs"].(map[string]any)
	assert.Contains(t, jobs, "all")
}

func TestEnrollmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	seq := activeSequence()
	env.sequences.Put(seq)

	enroll := map[string]any{
		"sequence_id": seq.ID.String(),
		"contact":     map[string]any{"email": "lena@example.com", "name": "Lena"},
	}
	code, body := env.do(t, http.MethodPost, "/api/v1/enrollments", enroll)
	require.Equal(t, http.StatusCreated, code, body)
	created := data(t, body)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, now.Add(time.Hour).Format(time.RFC3339), created["next_action_at"])
	id := created["id"].(string)

	code, _ = env.do(t, http.MethodPost, "/api/v1/enrollments", enroll)
	assert.Equal(t, http.StatusConflict, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/enrollments/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(t, body)["step_history"], 1)

	code, body = env.do(t, http.MethodPost, "/api/v1/enrollments/"+id+"/pause", map[string]any{"reason": "customer asked"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paused", data(t, body)["status"])
	assert.Equal(t, "customer asked", data(t, body)["pause_reason"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/enrollments/"+id+"/pause", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/enrollments/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", data(t, body)["status"])

	code, body = env.do(t, http.MethodPost, "/api/v1/enrollments/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", data(t, body)["status"])

	code, body = env.do(t, http.MethodGet, "/api/v1/sequences/"+seq.ID.String()+"/enrollments", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)
}

func TestCreateEnrollment_Validation(t *testing.T) {
	env := newTestEnv(t)
	inactive := activeSequence()
	inactive.IsActive = false
	env.sequences.Put(inactive)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing sequence id", map[string]any{"contact": map[string]any{"email": "a@example.com"}}, http.StatusBadRequest},
		{"bad sequence id", map[string]any{"sequence_id": "nope", "lead_id": uuid.NewString()}, http.StatusBadRequest},
		{"no target", map[string]any{"sequence_id": uuid.NewString()}, http.StatusBadRequest},
		{"bad email", map[string]any{"sequence_id": uuid.NewString(), "contact": map[string]any{"email": "not-an-email"}}, http.StatusBadRequest},
		{"unknown sequence", map[string]any{"sequence_id": uuid.NewString(), "contact": map[string]any{"email": "a@example.com"}}, http.StatusNotFound},
		{"inactive sequence", map[string]any{"sequence_id": inactive.ID.String(), "contact": map[string]any{"email": "a@example.com"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/v1/enrollments", tt.body)
			assert.Equal(t, tt.want, code, body)
		})
	}

	code, _ := env.do(t, http.MethodGet, "/api/v1/enrollments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/enrollments/123", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReminderStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	insert := func(kind domain.ReminderKind, typ domain.EntityType, at time.Time) {
		require.NoError(t, env.log.Insert(ctx, &domain.ReminderLogEntry{
			ID: uuid.New(), EntityID: uuid.New(), EntityType: typ, Kind: kind, SentAt: at,
		}))
	}
	insert(domain.ReminderAppointment24h, domain.EntityAppointment, now.Add(-time.Hour))
	insert(domain.ReminderAppointment24h, domain.EntityAppointment, now.Add(-2*time.Hour))
	insert(domain.ReminderInvoiceOverdue, domain.EntityInvoice, now.Add(-24*time.Hour))
	insert(domain.ReminderLeadFollowUp, domain.EntityLead, now.Add(-8*24*time.Hour))

	code, body := env.do(t, http.MethodGet, "/api/v1/reminders/stats", nil)
	require.Equal(t, http.StatusOK, code)
	d := data(t, body)
	assert.Equal(t, float64(3), d["total"])
	assert.Len(t, d["stats"], 2)
}

func TestUpdateConfigRequest_ToPatch(t *testing.T) {
	every := "45m"
	p, err := UpdateConfigRequest{FullInterval: &every}.ToPatch()
	require.NoError(t, err)
	require.NotNil(t, p.FullInterval)
	assert.Equal(t, 45*time.Minute, *p.FullInterval)
	assert.Nil(t, p.AppointmentInterval)

	bad := "forever"
	_, err = UpdateConfigRequest{StartDelay: &bad}.ToPatch()
	assert.ErrorContains(t, err, "start_delay")
}

func TestHealth(t *testing.T) {
	started := now.Add(-90 * time.Second)
	dbErr := error(nil)
	brokerUp := true
	h := Health(HealthConfig{
		DB:      func(ctx context.Context) error { return dbErr },
		Broker:  func() bool { return brokerUp },
		Started: started,
		Now:     func() time.Time { return now },
	})

	check := func() (int, string) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code, rec.Body.String()
	}

	code, body := check()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok 1m30s", body)

	brokerUp = false
	code, body = check()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "rabbitmq")

	dbErr = errors.New("connection refused")
	code, body = check()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "db")

	noBroker := Health(HealthConfig{Started: started, Now: func() time.Time { return now }})
	rec := httptest.NewRecorder()
	noBroker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
