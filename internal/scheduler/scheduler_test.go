package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int
	batch int

	enrollErr error
	leadErr   error
	panicOn   string

	// gate, если задан, держит ProcessAppointments до закрытия.
	gate        chan struct{}
	inFlight    int
	maxInFlight int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: make(map[string]int)}
}

func (f *fakeRunner) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	panicOn := f.panicOn
	f.mu.Unlock()
	if panicOn == name {
		panic("boom in " + name)
	}
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRunner) ProcessDue(ctx context.Context, batchSize int) (*enrollment.Summary, error) {
	f.hit("enrollments")
	f.mu.Lock()
	f.batch = batchSize
	f.mu.Unlock()
	return &enrollment.Summary{Due: 2, Advanced: 2}, f.enrollErr
}

func (f *fakeRunner) ProcessAppointments(ctx context.Context) (*reminder.Result, error) {
	f.hit("appointments")
	if f.gate != nil {
		f.mu.Lock()
		f.inFlight++
		f.maxInFlight = max(f.maxInFlight, f.inFlight)
		f.mu.Unlock()

		<-f.gate

		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
	return &reminder.Result{Email: 1}, nil
}

func (f *fakeRunner) ProcessLeadFollowUps(ctx context.Context) (*reminder.Result, error) {
	f.hit("leads")
	return &reminder.Result{}, f.leadErr
}

func (f *fakeRunner) ProcessPaymentReminders(ctx context.Context) (*reminder.Result, error) {
	f.hit("payments")
	return &reminder.Result{SMS: 1}, nil
}

func newScheduler(r *fakeRunner, st Settings) *Scheduler {
	return New(Config{Settings: st, Enrollments: r, Reminders: r})
}

func fastSettings() Settings {
	st := DefaultSettings()
	st.StartDelay = 10 * time.Millisecond
	st.FullStagger = 10 * time.Millisecond
	st.AppointmentInterval = time.Hour
	st.FullInterval = time.Hour
	return st
}

func TestStart_RunsImmediatelyAfterDelay(t *testing.T) {
	r := newFakeRunner()
	s := newScheduler(r, fastSettings())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return r.count("appointments") == 1 && r.count("payments") == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, r.count("enrollments"))
	assert.Equal(t, 1, r.count("leads"))

	st := s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.StartedAt)
	assert.Equal(t, "@every 1h0m0s", st.AppointmentEvery)
	assert.Equal(t, 1, st.Jobs[JobAppointments].Runs)
	assert.NotNil(t, st.Jobs[JobAppointments].NextRun)
}

func TestStart_NoopWhenRunningOrDisabled(t *testing.T) {
	r := newFakeRunner()
	st := fastSettings()
	st.StartDelay = time.Hour
	s := newScheduler(r, st)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())

	// Stop без запуска безопасен
	s.Stop()

	disabled := fastSettings()
	disabled.Enabled = false
	d := newScheduler(r, disabled)
	require.NoError(t, d.Start(context.Background()))
	assert.False(t, d.Running())
}

func TestStop_CancelsPendingStart(t *testing.T) {
	r := newFakeRunner()
	st := fastSettings()
	st.StartDelay = 50 * time.Millisecond
	s := newScheduler(r, st)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, r.count("appointments"))
	assert.Equal(t, 0, r.count("enrollments"))
}

func TestUpdateConfig(t *testing.T) {
	r := newFakeRunner()
	st := fastSettings()
	st.StartDelay = time.Hour
	s := newScheduler(r, st)

	every := 20 * time.Minute
	batch := 10
	got, err := s.UpdateConfig(Patch{AppointmentInterval: &every, BatchSize: &batch})
	require.NoError(t, err)
	assert.Equal(t, every, got.AppointmentInterval)
	assert.Equal(t, time.Hour, got.FullInterval)
	assert.False(t, s.Running())

	require.NoError(t, s.Start(context.Background()))
	full := 45 * time.Minute
	_, err = s.UpdateConfig(Patch{FullInterval: &full})
	require.NoError(t, err)
	assert.True(t, s.Running())
	assert.Equal(t, "@every 45m0s", s.Status().FullEvery)

	bad := "not a cron"
	_, err = s.UpdateConfig(Patch{FullCron: &bad})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "", s.Settings().FullCron)

	off := false
	_, err = s.UpdateConfig(Patch{Enabled: &off})
	require.NoError(t, err)
	assert.False(t, s.Running())

	_, _ = s.Trigger(context.Background(), JobEnrollments)
	assert.Equal(t, 10, r.batch)
}

func TestTrigger(t *testing.T) {
	r := newFakeRunner()
	s := newScheduler(r, fastSettings())
	ctx := context.Background()

	rep, err := s.Trigger(ctx, JobAll)
	require.NoError(t, err)
	assert.Empty(t, rep.Error)
	require.NotNil(t, rep.Enrollments)
	assert.Equal(t, 2, rep.Enrollments.Advanced)
	require.NotNil(t, rep.Appointments)
	require.NotNil(t, rep.Payments)
	assert.Equal(t, 1, r.count("appointments"))
	assert.Equal(t, 1, r.count("leads"))

	rep, err = s.Trigger(ctx, JobPayments)
	require.NoError(t, err)
	assert.Nil(t, rep.Enrollments)
	assert.Equal(t, 2, r.count("payments"))

	_, err = s.Trigger(ctx, Job("nope"))
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestTrigger_MayOverlapSameJob(t *testing.T) {
	r := newFakeRunner()
	r.gate = make(chan struct{})
	s := newScheduler(r, fastSettings())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Trigger(context.Background(), JobAppointments)
		}()
	}

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.maxInFlight == 2
	}, time.Second, 5*time.Millisecond)

	close(r.gate)
	wg.Wait()
	assert.Equal(t, 2, r.count("appointments"))
	assert.Equal(t, 2, s.Status().Jobs[JobAppointments].Runs)
}

func TestJobErrorsAreRecorded(t *testing.T) {
	r := newFakeRunner()
	r.leadErr = errors.New("leads table missing")
	s := newScheduler(r, fastSettings())
	ctx := context.Background()

	rep, err := s.Trigger(ctx, JobFull)
	require.NoError(t, err)
	assert.Contains(t, rep.Error, "leads table missing")

	// остальные части полного прогона выполнены
	assert.Equal(t, 1, r.count("enrollments"))
	assert.Equal(t, 1, r.count("payments"))

	for i := 0; i < 12; i++ {
		_, _ = s.Trigger(ctx, JobLeads)
	}

	st := s.Status()
	assert.Len(t, st.Errors, maxErrors)
	assert.Equal(t, JobLeads, st.Errors[len(st.Errors)-1].Job)
	assert.Equal(t, 12, st.Jobs[JobLeads].Failures)
	assert.Equal(t, 1, st.Jobs[JobFull].Failures)
}

func TestJobPanicIsRecovered(t *testing.T) {
	r := newFakeRunner()
	r.panicOn = "appointments"
	s := newScheduler(r, fastSettings())

	rep, err := s.Trigger(context.Background(), JobAppointments)
	require.NoError(t, err)
	assert.Contains(t, rep.Error, "job panicked")

	st := s.Status()
	require.Len(t, st.Errors, 1)
	assert.Equal(t, JobAppointments, st.Errors[0].Job)
}

func TestSettings(t *testing.T) {
	st := Settings{}.withDefaults()
	assert.Equal(t, DefaultAppointmentInterval, st.AppointmentInterval)
	assert.Equal(t, DefaultFullInterval, st.FullInterval)
	assert.Equal(t, DefaultBatchSize, st.BatchSize)
	assert.False(t, st.Enabled)

	st.FullCron = "*/30 * * * *"
	assert.NoError(t, st.Validate())

	st.AppointmentInterval = 100 * time.Millisecond
	assert.ErrorIs(t, st.Validate(), ErrInvalidConfig)

	assert.True(t, Patch{}.IsEmpty())
	assert.NoError(t, ValidateCronExpr("@hourly"))
	assert.Error(t, ValidateCronExpr("61 * * * *"))

	_, err := ParseJob("leads")
	assert.NoError(t, err)
	_, err = ParseJob("reports")
	assert.ErrorIs(t, err, ErrUnknownJob)
}
