package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Engage/internal/channel"
	"github.com/shaiso/Engage/internal/domain"
	"github.com/shaiso/Engage/internal/render"
)

// Тексты задачи по умолчанию.
const (
	defaultTaskTitle       = "Follow-up Task"
	defaultTaskDescription = "Follow up with {name}"
)

// TaskAction — шаг типа "task". Создаёт задачу владельцу
// последовательности, клиенту ничего не отправляется.
type TaskAction struct {
	Tasks channel.Tasks
}

// Execute создаёт задачу.
func (a *TaskAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	if a.Tasks == nil {
		return nil, fmt.Errorf("%w: tasks", ErrChannelNotConfigured)
	}
	if req.Sequence.OwnerID == nil {
		return nil, ErrNoOwner
	}

	title := req.Content.TaskTitle
	if title == "" {
		title = render.Render(defaultTaskTitle, req.Vars)
	}
	description := req.Content.TaskDescription
	if description == "" {
		description = render.Render(defaultTaskDescription, req.Vars)
	}

	task := &domain.FollowUpTask{
		ID:           uuid.New(),
		OwnerID:      *req.Sequence.OwnerID,
		EnrollmentID: req.Enrollment.ID,
		LeadID:       req.Enrollment.Contact.LeadID,
		CustomerID:   req.Enrollment.Contact.CustomerID,
		Title:        title,
		Description:  description,
		CreatedAt:    req.Now,
	}

	res := &Result{Recipient: task.OwnerID.String()}
	if err := a.Tasks.CreateFollowUp(ctx, task); err != nil {
		return res, err
	}
	return res, nil
}
