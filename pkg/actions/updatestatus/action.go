// Package updatestatus provides the action that moves a task to a new status.
package updatestatus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/protocol"
)

type Factory struct {
	tasks     persistence.TaskRepository
	audit     audit.Sink
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
}

func NewFactory(tasks persistence.TaskRepository, auditSink audit.Sink, publisher eventbus.EventPublisher, clock clockwork.Clock) *Factory {
	return &Factory{tasks: tasks, audit: auditSink, publisher: publisher, clock: clock}
}

func (f *Factory) Type() models.ActionType {
	return models.ActionUpdateStatus
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "minLength": 1},
			"status":  map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"status"},
	}
}

func (f *Factory) Create(data map[string]any) (protocol.Action, error) {
	if data == nil {
		return nil, fmt.Errorf("update_status action requires data")
	}

	return &Action{factory: f, data: data}, nil
}

type Action struct {
	factory *Factory
	data    map[string]any
}

func (a *Action) Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error) {
	taskID, _ := a.data["task_id"].(string)
	if taskID == "" {
		// Fall back to the execution context so a workflow can update the
		// task an earlier step created.
		taskID, _ = scope.Context["task_id"].(string)
	}

	if taskID == "" {
		return nil, fmt.Errorf("update_status action requires a task_id")
	}

	status, _ := a.data["status"].(string)

	task, err := a.factory.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := a.factory.clock.Now().UTC()
	task.Status = models.TaskStatus(status)
	task.UpdatedAt = now

	if task.Status == models.TaskStatusCompleted {
		task.CompletedDate = &now
	}

	if err := a.factory.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	logger.InfoContext(ctx, "Updated task status", "task_id", task.ID, "status", task.Status)

	if err := a.factory.audit.Record(ctx, "task.updated", map[string]any{
		"task_id": task.ID,
		"status":  string(task.Status),
	}); err != nil {
		logger.WarnContext(ctx, "Audit record failed", "error", err)
	}

	if a.factory.publisher != nil {
		event := events.TaskUpdated{
			BaseEvent: events.NewBaseEvent(events.TaskUpdatedEvent),
			TaskID:    task.ID,
			Status:    string(task.Status),
		}
		if err := a.factory.publisher.Publish(ctx, task.ID, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish task.updated", "error", err)
		}
	}

	return map[string]any{
		"task_id": task.ID,
		"status":  string(task.Status),
	}, nil
}
