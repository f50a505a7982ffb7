package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
)

// NotificationKind — тип in-app уведомления от шагов последовательности.
const NotificationKind = "automation"

const defaultNotificationTitle = "Notification"

// NotificationAction — шаг типа "in_app_notification".
//
// Получатель — Contact.UserID, а если его нет — пользователь,
// привязанный к клиенту контакта.
type NotificationAction struct {
	Notification channel.Notification
	Users        UserDirectory
}

// Execute создаёт уведомление.
func (a *NotificationAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	if a.Notification == nil {
		return nil, fmt.Errorf("%w: notification", ErrChannelNotConfigured)
	}

	userID, err := a.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}

	title := req.Content.NotificationTitle
	if title == "" {
		title = req.Content.Subject
	}
	if title == "" {
		title = defaultNotificationTitle
	}
	body := req.Content.NotificationBody
	if body == "" {
		body = req.Content.Body
	}

	res := &Result{Recipient: userID.String()}
	if err := a.Notification.Create(ctx, userID, NotificationKind, title, body); err != nil {
		return res, err
	}
	return res, nil
}

func (a *NotificationAction) resolveUser(ctx context.Context, req *Request) (uuid.UUID, error) {
	contact := req.Enrollment.Contact
	if contact.UserID != nil {
		return *contact.UserID, nil
	}
	if contact.CustomerID == nil || a.Users == nil {
		return uuid.Nil, ErrNoUserID
	}

	userID, err := a.Users.CustomerUserID(ctx, *contact.CustomerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrNoUserID, err)
	}
	if userID == nil {
		return uuid.Nil, ErrNoUserID
	}
	return *userID, nil
}
