package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicator_RecordThenSeen(t *testing.T) {
	clock := testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	log := testutil.NewReminderLog()
	d := New(Config{Log: log, Now: clock.Now})
	ctx := context.Background()
	id := uuid.New()

	sent, err := d.HasBeenSent(ctx, id, domain.EntityAppointment, domain.ReminderAppointment24h)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, d.RecordSent(ctx, id, domain.EntityAppointment, domain.ReminderAppointment24h))

	sent, err = d.HasBeenSent(ctx, id, domain.EntityAppointment, domain.ReminderAppointment24h)
	require.NoError(t, err)
	assert.True(t, sent)

	// другой вид напоминания — независимое окно
	sent, err = d.HasBeenSent(ctx, id, domain.EntityAppointment, domain.ReminderAppointment1h)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestDeduplicator_WindowExpires(t *testing.T) {
	clock := testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	d := New(Config{Log: testutil.NewReminderLog(), Now: clock.Now})
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, d.RecordSent(ctx, id, domain.EntityInvoice, domain.ReminderInvoiceOverdue))

	clock.Advance(DefaultLookback - time.Minute)
	sent, err := d.HasBeenSent(ctx, id, domain.EntityInvoice, domain.ReminderInvoiceOverdue)
	require.NoError(t, err)
	assert.True(t, sent)

	clock.Advance(2 * time.Minute)
	sent, err = d.HasBeenSent(ctx, id, domain.EntityInvoice, domain.ReminderInvoiceOverdue)
	require.NoError(t, err)
	assert.False(t, sent, "weekly reminder is due again after the lookback")
}

func TestDeduplicator_LookupError(t *testing.T) {
	log := testutil.NewReminderLog()
	log.ExistsErr = errors.New("db down")
	d := New(Config{Log: log})

	_, err := d.HasBeenSent(context.Background(), uuid.New(), domain.EntityLead, domain.ReminderLeadFollowUp)
	assert.ErrorIs(t, err, log.ExistsErr)
	assert.Equal(t, DefaultLookback, d.Lookback())
}
