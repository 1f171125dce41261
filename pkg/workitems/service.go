// Package workitems is the caller-facing surface for tasks, reminders and
// approvals created outside of workflow steps and rule actions.
package workitems

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/persistence"
)

// Service owns id generation, timestamps, validation, audit and lifecycle
// events for directly-created work items.
type Service struct {
	tasks     persistence.TaskRepository
	reminders persistence.ReminderRepository
	approvals persistence.ApprovalRepository
	notifier  notifier.Notifier
	audit     audit.Sink
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	clock     clockwork.Clock
	logger    *slog.Logger
}

type ServiceOption func(*Service)

// WithPublisher enables lifecycle events on the bus.
func WithPublisher(publisher eventbus.EventPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func NewService(
	store persistence.Persistence,
	notify notifier.Notifier,
	auditSink audit.Sink,
	clock clockwork.Clock,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	service := &Service{
		tasks:     store.Tasks(),
		reminders: store.Reminders(),
		approvals: store.Approvals(),
		notifier:  notify,
		audit:     auditSink,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		clock:     clock,
		logger:    logger.With("module", "workitems"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// CreateTask stores a new task. Status defaults to pending and priority to
// medium when unset.
func (s *Service) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	now := s.clock.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := s.validate.Struct(task); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	s.record(ctx, "task.created", map[string]any{"task_id": task.ID, "title": task.Title})
	s.publish(ctx, task.ID, events.TaskCreated{
		BaseEvent: events.NewBaseEvent(events.TaskCreatedEvent),
		TaskID:    task.ID,
		Title:     task.Title,
	})

	return task, nil
}

// UpdateTaskStatus moves a task to the given status. Completion stamps the
// completed date.
func (s *Service) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	task.Status = status
	task.UpdatedAt = now

	if status == models.TaskStatusCompleted {
		task.CompletedDate = &now
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	s.record(ctx, "task.updated", map[string]any{"task_id": id, "status": string(status)})
	s.publish(ctx, id, events.TaskUpdated{
		BaseEvent: events.NewBaseEvent(events.TaskUpdatedEvent),
		TaskID:    id,
		Status:    string(status),
	})

	return task, nil
}

func (s *Service) ListTasks(ctx context.Context) ([]*models.Task, error) {
	return s.tasks.List(ctx)
}

func (s *Service) ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	return s.tasks.ListByStatus(ctx, status)
}

// CreateReminder stores a pending reminder for later dispatch by the
// sweeper. A trigger date in the past is allowed; the next sweep picks it up
// immediately.
func (s *Service) CreateReminder(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	if reminder.ID == "" {
		reminder.ID = uuid.New().String()
	}

	reminder.Status = models.ReminderStatusPending
	reminder.CreatedAt = s.clock.Now().UTC()

	if err := s.validate.Struct(reminder); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}

	if err := s.reminders.Save(ctx, reminder); err != nil {
		return nil, err
	}

	s.record(ctx, "reminder.created", map[string]any{"reminder_id": reminder.ID, "user_id": reminder.UserID})
	s.publish(ctx, reminder.ID, events.ReminderCreated{
		BaseEvent:   events.NewBaseEvent(events.ReminderCreatedEvent),
		ReminderID:  reminder.ID,
		UserID:      reminder.UserID,
		TriggerDate: reminder.TriggerDate,
	})

	return reminder, nil
}

// CreateApproval stores a pending approval and notifies each approver.
func (s *Service) CreateApproval(ctx context.Context, approval *models.Approval) (*models.Approval, error) {
	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}

	approval.Status = models.ApprovalStatusPending
	approval.CreatedAt = s.clock.Now().UTC()

	if err := s.validate.Struct(approval); err != nil {
		return nil, fmt.Errorf("invalid approval: %w", err)
	}

	if err := s.approvals.Save(ctx, approval); err != nil {
		return nil, err
	}

	s.record(ctx, "approval.requested", map[string]any{"approval_id": approval.ID, "requested_by": approval.RequestedBy})
	s.publish(ctx, approval.ID, events.ApprovalRequested{
		BaseEvent:   events.NewBaseEvent(events.ApprovalRequestedEvent),
		ApprovalID:  approval.ID,
		RequestedBy: approval.RequestedBy,
		Approvers:   approval.Approvers,
	})

	for _, approver := range approval.Approvers {
		err := s.notifier.Send(ctx, notifier.Notification{
			UserID:  approver,
			Title:   "Approval requested: " + approval.Title,
			Message: "Requested by " + approval.RequestedBy,
			Type:    "approval_request",
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to notify approver", "approval_id", approval.ID, "user_id", approver, "error", err)
		}
	}

	return approval, nil
}

// ProcessApproval applies a terminal decision with an optional comment and
// notifies the requester. Deciding an already-decided approval fails with
// models.ErrApprovalDecided.
func (s *Service) ProcessApproval(ctx context.Context, id string, approved bool, decidedBy, comment string) (*models.Approval, error) {
	approval, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := approval.Decide(approved, decidedBy, now); err != nil {
		return nil, err
	}

	if comment != "" {
		approval.Comments = append(approval.Comments, models.ApprovalComment{
			Author:    decidedBy,
			Text:      comment,
			CreatedAt: now,
		})
	}

	// Claim the transition in the store; if another decision committed
	// between the read and here, this one loses.
	claimed, err := s.approvals.MarkDecided(ctx, approval)
	if err != nil {
		return nil, err
	}

	if !claimed {
		return nil, models.ErrApprovalDecided
	}

	s.record(ctx, "approval.decided", map[string]any{
		"approval_id": id,
		"status":      string(approval.Status),
		"decided_by":  decidedBy,
	})
	s.publish(ctx, id, events.ApprovalDecided{
		BaseEvent:  events.NewBaseEvent(events.ApprovalDecidedEvent),
		ApprovalID: id,
		Status:     string(approval.Status),
		DecidedBy:  decidedBy,
	})

	err = s.notifier.Send(ctx, notifier.Notification{
		UserID:  approval.RequestedBy,
		Title:   "Approval " + string(approval.Status) + ": " + approval.Title,
		Message: "Decided by " + decidedBy,
		Type:    "approval_decision",
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to notify requester", "approval_id", id, "error", err)
	}

	return approval, nil
}

func (s *Service) record(ctx context.Context, action string, data map[string]any) {
	if err := s.audit.Record(ctx, action, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to write audit record", "action", action, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
