// Package persistence provides the storage abstraction layer for the
// execution core's entity stores.
package persistence

import (
	"context"
	"time"

	"github.com/carelane/careflow/pkg/models"
)

// Persistence aggregates the per-entity repositories. Components receive the
// repositories they need rather than reaching into shared global state.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Tasks() TaskRepository
	Reminders() ReminderRepository
	Approvals() ApprovalRepository
	Rules() RuleRepository
	Schedules() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow execution records.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	// DeleteTerminalBefore removes completed and failed executions that ended
	// before the cutoff, returning how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TaskRepository stores tasks.
type TaskRepository interface {
	Save(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	ListByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error)
}

// ReminderRepository stores reminders. MarkSent is the single mechanism that
// flips a reminder to sent, so every dispatch path races through the same
// compare-and-set.
type ReminderRepository interface {
	Save(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id string) (*models.Reminder, error)
	List(ctx context.Context) ([]*models.Reminder, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)

	// MarkSent atomically transitions the reminder from pending to sent,
	// stamping the sent date. It returns false when the reminder was already
	// sent, which makes dispatch at-most-once across concurrent sweeps.
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)

	// DeleteSentBefore removes sent reminders dispatched before the cutoff,
	// returning how many were removed.
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ApprovalRepository stores approvals.
type ApprovalRepository interface {
	Save(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	List(ctx context.Context) ([]*models.Approval, error)

	// MarkDecided persists a decided approval only while the stored record
	// is still pending, so the pending -> approved|rejected transition
	// commits exactly once. It reports whether this caller won the claim;
	// losing the race is (false, nil), a missing id is ErrApprovalNotFound.
	MarkDecided(ctx context.Context, approval *models.Approval) (bool, error)
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	Save(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	List(ctx context.Context) ([]*models.AutomationRule, error)
	ListByTrigger(ctx context.Context, trigger string) ([]*models.AutomationRule, error)
}

// ScheduleRepository stores schedules.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context) ([]*models.Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
}
