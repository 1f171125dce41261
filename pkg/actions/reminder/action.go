// Package reminder provides the action that schedules a reminder. Dispatch is
// the sweeper's job; creating one never sends anything directly.
package reminder

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
	reminders persistence.ReminderRepository
	audit     audit.Sink
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
}

func NewFactory(reminders persistence.ReminderRepository, auditSink audit.Sink, publisher eventbus.EventPublisher, clock clockwork.Clock) *Factory {
	return &Factory{reminders: reminders, audit: auditSink, publisher: publisher, clock: clock}
}

func (f *Factory) Type() models.ActionType {
	return models.ActionReminder
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string", "minLength": 1},
			"message":      map[string]any{"type": "string"},
			"user_id":      map[string]any{"type": "string"},
			"entity_id":    map[string]any{"type": "string"},
			"entity_type":  map[string]any{"type": "string"},
			"trigger_date": map[string]any{"type": "string"},
			"delay":        map[string]any{"type": "string"},
		},
		"required": []any{"title"},
	}
}

func (f *Factory) Create(data map[string]any) (protocol.Action, error) {
	if data == nil {
		return nil, fmt.Errorf("reminder action requires data")
	}

	return &Action{factory: f, data: data}, nil
}

type Action struct {
	factory *Factory
	data    map[string]any
}

func (a *Action) Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error) {
	now := a.factory.clock.Now().UTC()

	triggerDate, err := a.triggerDate(now)
	if err != nil {
		return nil, err
	}

	record := &models.Reminder{
		ID:          uuid.New().String(),
		Title:       stringField(a.data, "title"),
		Message:     stringField(a.data, "message"),
		UserID:      stringField(a.data, "user_id"),
		EntityID:    stringField(a.data, "entity_id"),
		EntityType:  stringField(a.data, "entity_type"),
		TriggerDate: triggerDate,
		Status:      models.ReminderStatusPending,
		CreatedAt:   now,
	}

	if err := a.factory.reminders.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save reminder: %w", err)
	}

	logger.InfoContext(ctx, "Scheduled reminder", "reminder_id", record.ID, "trigger_date", record.TriggerDate)

	if err := a.factory.audit.Record(ctx, "reminder.created", map[string]any{
		"reminder_id": record.ID,
		"workflow_id": scope.WorkflowID,
	}); err != nil {
		logger.WarnContext(ctx, "Audit record failed", "error", err)
	}

	if a.factory.publisher != nil {
		event := events.ReminderCreated{
			BaseEvent:   events.NewBaseEvent(events.ReminderCreatedEvent),
			ReminderID:  record.ID,
			UserID:      record.UserID,
			TriggerDate: record.TriggerDate,
		}
		if err := a.factory.publisher.Publish(ctx, record.ID, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish reminder.created", "error", err)
		}
	}

	return map[string]any{
		"reminder_id":  record.ID,
		"trigger_date": record.TriggerDate.Format(time.RFC3339),
	}, nil
}

// triggerDate resolves the reminder time: an explicit trigger_date wins, a
// delay duration is added to now, and with neither the reminder is due
// immediately.
func (a *Action) triggerDate(now time.Time) (time.Time, error) {
	if raw := stringField(a.data, "trigger_date"); raw != "" {
		triggerDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid trigger_date %q: %w", raw, err)
		}

		return triggerDate, nil
	}

	if raw := stringField(a.data, "delay"); raw != "" {
		delay, err := time.ParseDuration(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid delay %q: %w", raw, err)
		}

		return now.Add(delay), nil
	}

	return now, nil
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}
