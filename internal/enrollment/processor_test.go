package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/executor"
	"github.com/shaiso/Engage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock       *testutil.Clock
	sequences   *testutil.Sequences
	enrollments *testutil.Enrollments
	email       *testutil.FakeEmail
	sms         *testutil.FakeSMS
	events      *recordingEvents
	processor   *Processor
}

func newHarness(t *testing.T, exec StepExecutor) *harness {
	t.Helper()
	h := &harness{
		clock:       testutil.NewClock(start),
		sequences:   testutil.NewSequences(),
		enrollments: testutil.NewEnrollments(),
		email:       &testutil.FakeEmail{},
		sms:         &testutil.FakeSMS{},
		events:      &recordingEvents{},
	}
	if exec == nil {
		exec = executor.New(executor.Config{
			Channels: channel.Set{Email: h.email, SMS: h.sms},
			Now:      h.clock.Now,
		})
	}
	h.processor = NewProcessor(ProcessorConfig{
		Enrollments: h.enrollments,
		Sequences:   h.sequences,
		Executor:    exec,
		Events:      h.events,
		Now:         h.clock.Now,
	})
	return h
}

func emailThenSMS() *domain.Sequence {
	return &domain.Sequence{
		ID:       uuid.New(),
		Name:     "welcome",
		IsActive: true,
		Steps: []domain.Step{
			{Index: 0, ActionType: domain.ActionEmail, Content: domain.StepContent{Subject: "Hi {first_name}", Body: "Welcome"}},
			{Index: 1, ActionType: domain.ActionSMS, DelaySec: int((24 * time.Hour).Seconds()), Content: domain.StepContent{SMSBody: "Still there?"}},
		},
	}
}

func (h *harness) enroll(seq *domain.Sequence, contact domain.Contact) *domain.Enrollment {
	e := domain.NewEnrollment(seq, contact, h.clock.Now())
	h.enrollments.Add(e)
	return e
}

func assertInvariant(t *testing.T, e domain.Enrollment, seq *domain.Sequence) {
	t.Helper()
	assert.GreaterOrEqual(t, e.CurrentStep, 0)
	assert.LessOrEqual(t, e.CurrentStep, seq.Len())
	assert.Equal(t, e.Status == domain.EnrollmentCompleted, e.CurrentStep == seq.Len())
}

func TestProcessDue_TwoStepSequence(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	e := h.enroll(seq, domain.Contact{Email: "jane@example.com", Phone: "+15550001", Name: "Jane"})
	ctx := context.Background()

	sum, err := h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Advanced)

	got := h.enrollments.Snapshot(e.ID)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, domain.EnrollmentActive, got.Status)
	require.NotNil(t, got.NextActionAt)
	assert.Equal(t, start.Add(24*time.Hour), *got.NextActionAt)
	assert.Equal(t, 1, h.email.Count())
	assert.Equal(t, "Hi Jane", h.email.Sent[0].Subject)
	assertInvariant(t, got, seq)

	// 23 часа спустя — ещё рано
	h.clock.Set(start.Add(23 * time.Hour))
	sum, err = h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Due)
	assert.Equal(t, 1, h.enrollments.Snapshot(e.ID).CurrentStep)
	assert.Equal(t, 0, h.sms.Count())

	// 25 часов спустя — SMS и завершение
	h.clock.Set(start.Add(25 * time.Hour))
	sum, err = h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Completed)

	got = h.enrollments.Snapshot(e.ID)
	assert.Equal(t, 2, got.CurrentStep)
	assert.Equal(t, domain.EnrollmentCompleted, got.Status)
	assert.Nil(t, got.NextActionAt)
	assert.Equal(t, 1, h.sms.Count())
	assertInvariant(t, got, seq)

	// enrolled + 2 успешных шага
	require.Len(t, got.StepHistory, 3)
	assert.Equal(t, domain.OutcomeSuccess, got.StepHistory[1].Outcome)
	assert.Equal(t, domain.ActionSMS, got.StepHistory[2].ActionType)
}

func TestProcessDue_DeactivatedSequencePauses(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	e := h.enroll(seq, domain.Contact{Email: "jane@example.com"})
	h.sequences.SetActive(seq.ID, false)

	sum, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Paused)

	got := h.enrollments.Snapshot(e.ID)
	assert.Equal(t, domain.EnrollmentPaused, got.Status)
	assert.Equal(t, ReasonSequenceDeactivated, got.PauseReason)
	assert.Equal(t, 0, got.CurrentStep)
	assert.Equal(t, 0, h.email.Count(), "no step must run for a deactivated sequence")

	last := got.StepHistory[len(got.StepHistory)-1]
	assert.Equal(t, domain.OutcomePaused, last.Outcome)
	assert.Equal(t, ReasonSequenceDeactivated, last.Detail)
}

func TestProcessDue_MissingSequencePauses(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	e := h.enroll(seq, domain.Contact{Email: "jane@example.com"})

	_, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)

	got := h.enrollments.Snapshot(e.ID)
	assert.Equal(t, domain.EnrollmentPaused, got.Status)
	assert.Equal(t, ReasonSequenceNotFound, got.PauseReason)
}

func TestProcessDue_CompletesWhenNoStepsLeft(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	e := domain.NewEnrollment(seq, domain.Contact{Email: "jane@example.com"}, start)
	e.CurrentStep = seq.Len()
	h.enrollments.Add(e)

	sum, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Completed)

	got := h.enrollments.Snapshot(e.ID)
	assert.Equal(t, domain.EnrollmentCompleted, got.Status)
	assert.Nil(t, got.NextActionAt)
	assert.Equal(t, 0, h.email.Count())
	assertInvariant(t, got, seq)
}

func TestProcessDue_RetryWithoutAdvance(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	e := h.enroll(seq, domain.Contact{Email: "jane@example.com"})
	h.email.Err = errors.New("smtp unavailable")
	ctx := context.Background()

	sum, err := h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	got := h.enrollments.Snapshot(e.ID)
	assert.Equal(t, 0, got.CurrentStep)
	assert.Equal(t, start, *got.NextActionAt)
	last := got.StepHistory[len(got.StepHistory)-1]
	assert.Equal(t, domain.OutcomeFailed, last.Outcome)
	assert.Equal(t, "smtp unavailable", last.Detail)

	// следующий тик — канал снова работает
	h.email.Err = nil
	h.clock.Advance(15 * time.Minute)
	_, err = h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)

	got = h.enrollments.Snapshot(e.ID)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), *got.NextActionAt)
	assert.Equal(t, 1, h.email.Count())

	// ещё один тик ничего не делает: шаг продвинут ровно один раз
	_, err = h.processor.ProcessDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, h.enrollments.Snapshot(e.ID).CurrentStep)
	assert.Equal(t, 1, h.email.Count())
}

func TestProcessDue_IsolatesFailures(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)

	broken := h.enroll(seq, domain.Contact{Phone: "+1"}) // нет email
	h.clock.Advance(time.Second)
	storeFails := h.enroll(seq, domain.Contact{Email: "b@example.com"})
	h.enrollments.UpdateErr[storeFails.ID] = errors.New("write conflict")
	h.clock.Advance(time.Second)
	healthy := h.enroll(seq, domain.Contact{Email: "c@example.com"})

	sum, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Due)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.Advanced)

	assert.Equal(t, 0, h.enrollments.Snapshot(broken.ID).CurrentStep)
	assert.Equal(t, 0, h.enrollments.Snapshot(storeFails.ID).CurrentStep)
	assert.Equal(t, 1, h.enrollments.Snapshot(healthy.ID).CurrentStep)
}

type panickyExecutor struct {
	panicFor uuid.UUID
}

func (p *panickyExecutor) Execute(ctx context.Context, in *executor.Input) *executor.Result {
	if in.Enrollment.ID == p.panicFor {
		panic("unexpected nil")
	}
	return &executor.Result{Success: true, Channel: in.Step.ActionType}
}

func TestProcessDue_RecoversPanicPerEnrollment(t *testing.T) {
	exec := &panickyExecutor{}
	h := newHarness(t, exec)
	seq := emailThenSMS()
	h.sequences.Put(seq)

	bad := h.enroll(seq, domain.Contact{Email: "a@example.com"})
	good := h.enroll(seq, domain.Contact{Email: "b@example.com"})
	exec.panicFor = bad.ID

	sum, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.Advanced)
	assert.Equal(t, 1, h.enrollments.Snapshot(good.ID).CurrentStep)
	assert.Equal(t, 0, h.enrollments.Snapshot(bad.ID).CurrentStep)
}

func TestProcessDue_BatchCap(t *testing.T) {
	exec := &panickyExecutor{}
	h := newHarness(t, exec)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	for i := 0; i < 120; i++ {
		h.enroll(seq, domain.Contact{Email: "x@example.com"})
	}
	ctx := context.Background()

	for _, want := range []int{50, 50, 20, 0} {
		sum, err := h.processor.ProcessDue(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, want, sum.Due)
		assert.Equal(t, want, sum.Advanced)
	}
}

func TestProcessDue_FindError(t *testing.T) {
	h := newHarness(t, nil)
	h.enrollments.FindErr = errors.New("db down")

	_, err := h.processor.ProcessDue(context.Background(), 0)
	assert.ErrorIs(t, err, h.enrollments.FindErr)
}

func TestProcessDue_PublishesEvents(t *testing.T) {
	h := newHarness(t, nil)
	seq := emailThenSMS()
	h.sequences.Put(seq)
	e := h.enroll(seq, domain.Contact{Email: "jane@example.com"})

	_, err := h.processor.ProcessDue(context.Background(), 0)
	require.NoError(t, err)

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].EnrollmentID)
	assert.Equal(t, domain.OutcomeSuccess, events[0].Outcome)
	assert.Equal(t, domain.ActionEmail, events[0].ActionType)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []domain.EnrollmentEvent
}

func (r *recordingEvents) PublishEnrollmentEvent(ctx context.Context, evt domain.EnrollmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) all() []domain.EnrollmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EnrollmentEvent(nil), r.events...)
}
