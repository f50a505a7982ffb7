package mq

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/enrollment"
	"github.com/shaiso/Engage/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnroller struct {
	got []enrollment.EnrollRequest
	err error
}

func (f *fakeEnroller) Enroll(ctx context.Context, req enrollment.EnrollRequest) (*domain.Enrollment, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Enrollment{ID: uuid.New(), SequenceID: req.SequenceID}, nil
}

func enrollMessage(t *testing.T, req enrollment.EnrollRequest) *Message {
	t.Helper()
	msg, err := NewMessage(MessageTypeEnrollRequest, req, time.Now())
	require.NoError(t, err)
	return msg
}

func TestEnrollHandler(t *testing.T) {
	leadID := uuid.New()
	req := enrollment.EnrollRequest{SequenceID: uuid.New(), LeadID: &leadID}

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		permanent bool
	}{
		{name: "enrolled"},
		{name: "already enrolled is acked", err: enrollment.ErrAlreadyEnrolled},
		{name: "missing sequence goes to dlq", err: fmt.Errorf("get sequence: %w", repo.ErrNotFound), wantErr: true, permanent: true},
		{name: "inactive sequence goes to dlq", err: enrollment.ErrSequenceInactive, wantErr: true, permanent: true},
		{name: "no contact goes to dlq", err: enrollment.ErrNoContact, wantErr: true, permanent: true},
		{name: "db error is retried", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &fakeEnroller{err: tt.err}
			h := NewEnrollHandler(e, nil)

			err := h(context.Background(), enrollMessage(t, req))
			if !tt.wantErr {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.permanent, errors.Is(err, ErrPermanent))
			}

			require.Len(t, e.got, 1)
			assert.Equal(t, req.SequenceID, e.got[0].SequenceID)
			require.NotNil(t, e.got[0].LeadID)
			assert.Equal(t, leadID, *e.got[0].LeadID)
		})
	}
}

func TestEnrollHandler_RejectsBadMessages(t *testing.T) {
	e := &fakeEnroller{}
	h := NewEnrollHandler(e, nil)

	wrongType, err := NewMessage(MessageTypeReminderSent, map[string]string{}, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, h(context.Background(), wrongType), ErrPermanent)

	garbage := &Message{ID: "1", Type: MessageTypeEnrollRequest, Payload: []byte(`"not an object"`)}
	assert.ErrorIs(t, h(context.Background(), garbage), ErrPermanent)

	assert.Empty(t, e.got)
}

func TestConsumerDispatch(t *testing.T) {
	msg := &Message{ID: "m1", Type: MessageTypeEnrollRequest}

	c := NewConsumer(nil, ConsumerConfig{Queue: QueueEnrollments, Handler: func(ctx context.Context, m *Message) error {
		return nil
	}})
	requeue, err := c.dispatch(context.Background(), msg)
	assert.NoError(t, err)
	assert.False(t, requeue)

	c.handler = func(ctx context.Context, m *Message) error { return errors.New("temporary") }
	requeue, err = c.dispatch(context.Background(), msg)
	assert.Error(t, err)
	assert.True(t, requeue)

	c.handler = func(ctx context.Context, m *Message) error { return fmt.Errorf("%w: bad", ErrPermanent) }
	requeue, err = c.dispatch(context.Background(), msg)
	assert.Error(t, err)
	assert.False(t, requeue)

	c.handler = func(ctx context.Context, m *Message) error { panic("boom") }
	requeue, err = c.dispatch(context.Background(), msg)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.False(t, requeue)
}

func TestEnrollmentMessageType(t *testing.T) {
	assert.Equal(t, MessageTypeStepExecuted, EnrollmentMessageType(domain.OutcomeSuccess))
	assert.Equal(t, MessageTypeStepFailed, EnrollmentMessageType(domain.OutcomeFailed))
	assert.Equal(t, MessageTypeCompleted, EnrollmentMessageType(domain.OutcomeCompleted))
	assert.Equal(t, MessageTypePaused, EnrollmentMessageType(domain.OutcomePaused))
	assert.Equal(t, MessageType("enrollment.archived"), EnrollmentMessageType(domain.Outcome("archived")))
}

func TestDecodePayload(t *testing.T) {
	evt := domain.ReminderEvent{EntityID: uuid.New(), EntityType: domain.EntityInvoice, Kind: domain.ReminderInvoiceOverdue}
	msg, err := NewMessage(MessageTypeReminderSent, evt, time.Now())
	require.NoError(t, err)

	got, err := DecodePayload[domain.ReminderEvent](msg)
	require.NoError(t, err)
	assert.Equal(t, evt.EntityID, got.EntityID)
	assert.Equal(t, domain.ReminderInvoiceOverdue, got.Kind)
}
