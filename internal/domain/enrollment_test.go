package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepSequence() *Sequence {
	return &Sequence{
		ID:       uuid.New(),
		Name:     "welcome",
		IsActive: true,
		Steps: []Step{
			{Index: 0, ActionType: ActionEmail},
			{Index: 1, ActionType: ActionSMS, DelaySec: int((24 * time.Hour).Seconds())},
		},
	}
}

func TestNewEnrollment_SchedulesFirstStep(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seq := twoStepSequence()
	seq.Steps[0].DelaySec = 3600

	e := NewEnrollment(seq, Contact{Email: "a@example.com"}, now)

	assert.Equal(t, EnrollmentActive, e.Status)
	assert.Equal(t, 0, e.CurrentStep)
	require.NotNil(t, e.NextActionAt)
	assert.Equal(t, now.Add(time.Hour), *e.NextActionAt)
	require.Len(t, e.StepHistory, 1)
	assert.Equal(t, OutcomeEnrolled, e.StepHistory[0].Outcome)
}

func TestEnrollment_AdvanceThroughSequence(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seq := twoStepSequence()
	e := NewEnrollment(seq, Contact{Email: "a@example.com"}, now)

	entry := e.Advance(seq, now, "sent")
	assert.Equal(t, OutcomeSuccess, entry.Outcome)
	assert.Equal(t, ActionEmail, entry.ActionType)
	assert.Equal(t, 1, e.CurrentStep)
	assert.Equal(t, EnrollmentActive, e.Status)
	require.NotNil(t, e.NextActionAt)
	assert.Equal(t, now.Add(24*time.Hour), *e.NextActionAt)

	later := now.Add(25 * time.Hour)
	e.Advance(seq, later, "sent")
	assert.Equal(t, 2, e.CurrentStep)
	assert.Equal(t, EnrollmentCompleted, e.Status)
	assert.Nil(t, e.NextActionAt)
	require.NotNil(t, e.CompletedAt)
	assert.Len(t, e.StepHistory, 3)
}

func TestEnrollment_FailKeepsState(t *testing.T) {
	now := time.Now()
	seq := twoStepSequence()
	e := NewEnrollment(seq, Contact{}, now)
	before := *e.NextActionAt

	e.Fail(ActionEmail, now, "No email address")

	assert.Equal(t, 0, e.CurrentStep)
	assert.Equal(t, EnrollmentActive, e.Status)
	assert.Equal(t, before, *e.NextActionAt)
	assert.Equal(t, OutcomeFailed, e.StepHistory[len(e.StepHistory)-1].Outcome)
}

func TestEnrollment_CompleteClampsStep(t *testing.T) {
	now := time.Now()
	seq := twoStepSequence()
	e := NewEnrollment(seq, Contact{}, now)
	e.CurrentStep = 5

	e.Complete(seq.Len(), now, "no steps left")

	assert.Equal(t, seq.Len(), e.CurrentStep)
	assert.Equal(t, EnrollmentCompleted, e.Status)
}

func TestEnrollment_PauseResumeCancel(t *testing.T) {
	now := time.Now()
	seq := twoStepSequence()
	e := NewEnrollment(seq, Contact{}, now)

	_, err := e.Pause("manual", now)
	require.NoError(t, err)
	assert.Equal(t, EnrollmentPaused, e.Status)
	assert.False(t, e.IsDue(now.Add(time.Hour)))

	_, err = e.Pause("again", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resumedAt := now.Add(time.Minute)
	_, err = e.Resume(resumedAt)
	require.NoError(t, err)
	assert.True(t, e.IsDue(resumedAt))
	assert.Empty(t, e.PauseReason)

	_, err = e.Cancel(resumedAt)
	require.NoError(t, err)
	assert.Equal(t, EnrollmentCancelled, e.Status)
	assert.Nil(t, e.NextActionAt)

	_, err = e.Cancel(resumedAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSequence_Validate(t *testing.T) {
	seq := twoStepSequence()
	assert.NoError(t, seq.Validate())

	seq.Steps[1].ActionType = "fax"
	assert.Error(t, seq.Validate())

	empty := &Sequence{ID: uuid.New()}
	assert.Error(t, empty.Validate())
}

func TestStepContent_Merge(t *testing.T) {
	base := StepContent{Subject: "Hello", Body: "Base body"}
	merged := base.Merge(StepContent{Body: "Override"})

	assert.Equal(t, "Hello", merged.Subject)
	assert.Equal(t, "Override", merged.Body)
}

func TestContact_FirstName(t *testing.T) {
	assert.Equal(t, "Jane", Contact{Name: "Jane Doe"}.FirstName())
	assert.Equal(t, "", Contact{}.FirstName())
}
