package reminder

import (
	"context"

	"github.com/google/uuid"
)

// dispatch — отправки по одной сущности.
type dispatch struct {
	p    *Processor
	ctx  context.Context
	kind string
	res  *Result

	attempts  int
	delivered []string
}

func (p *Processor) newDispatch(ctx context.Context, kind string, res *Result) *dispatch {
	return &dispatch{p: p, ctx: ctx, kind: kind, res: res}
}

func (d *dispatch) email(to, subject, html string) {
	if d.p.channels.Email == nil {
		return
	}
	d.attempts++
	err := d.p.channels.Email.Send(d.ctx, to, subject, html)
	d.done("email", to, err)
	if err == nil {
		d.res.Email++
	}
}

func (d *dispatch) sms(to, body string) {
	if d.p.channels.SMS == nil {
		return
	}
	d.attempts++
	err := d.p.channels.SMS.Send(d.ctx, to, body)
	d.done("sms", to, err)
	if err == nil {
		d.res.SMS++
	}
}

func (d *dispatch) notify(userID uuid.UUID, kind, title, body string) {
	if d.p.channels.Notification == nil {
		return
	}
	d.attempts++
	err := d.p.channels.Notification.Create(d.ctx, userID, kind, title, body)
	d.done("in_app_notification", userID.String(), err)
	if err == nil {
		d.res.Notifications++
	}
}

func (d *dispatch) done(channel, recipient string, err error) {
	d.p.metrics.ReminderDispatched(d.kind, channel, err == nil)
	if err != nil {
		d.p.logger.Warn("reminder delivery failed",
			"reminder_kind", d.kind,
			"channel", channel,
			"recipient", recipient,
			"error", err,
		)
		d.res.Errors++
		return
	}
	d.delivered = append(d.delivered, recipient)
}
