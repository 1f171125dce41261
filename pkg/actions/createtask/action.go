// Package createtask provides the action that creates a task work item.
package createtask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
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
	return models.ActionCreateTask
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"task_type":   map[string]any{"type": "string"},
			"priority":    map[string]any{"type": "string"},
			"assigned_to": map[string]any{"type": "string"},
			"created_by":  map[string]any{"type": "string"},
			"due_date":    map[string]any{"type": "string"},
		},
		"required": []any{"title"},
	}
}

func (f *Factory) Create(data map[string]any) (protocol.Action, error) {
	if data == nil {
		return nil, fmt.Errorf("create_task action requires data")
	}

	return &Action{factory: f, data: data}, nil
}

type Action struct {
	factory *Factory
	data    map[string]any
}

func (a *Action) Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error) {
	now := a.factory.clock.Now().UTC()

	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       stringField(a.data, "title"),
		Description: stringField(a.data, "description"),
		Type:        stringField(a.data, "task_type"),
		Priority:    models.TaskPriority(stringField(a.data, "priority")),
		Status:      models.TaskStatusPending,
		AssignedTo:  stringField(a.data, "assigned_to"),
		CreatedBy:   stringField(a.data, "created_by"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	if raw := stringField(a.data, "due_date"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid due_date %q: %w", raw, err)
		}

		task.DueDate = &due
	}

	if tags, ok := a.data["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				task.Tags = append(task.Tags, s)
			}
		}
	}

	if err := a.factory.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	logger.InfoContext(ctx, "Created task", "task_id", task.ID, "title", task.Title)

	if err := a.factory.audit.Record(ctx, "task.created", map[string]any{
		"task_id":     task.ID,
		"workflow_id": scope.WorkflowID,
	}); err != nil {
		logger.WarnContext(ctx, "Audit record failed", "error", err)
	}

	if a.factory.publisher != nil {
		event := events.TaskCreated{
			BaseEvent: events.NewBaseEvent(events.TaskCreatedEvent),
			TaskID:    task.ID,
			Title:     task.Title,
		}
		if err := a.factory.publisher.Publish(ctx, task.ID, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish task.created", "error", err)
		}
	}

	return map[string]any{
		"task_id": task.ID,
		"title":   task.Title,
		"status":  string(task.Status),
	}, nil
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}
