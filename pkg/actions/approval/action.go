// Package approval provides the action that opens an approval request.
package approval

import (
	"context"
	"fmt"
	"log/slog"

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
	approvals persistence.ApprovalRepository
	audit     audit.Sink
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
}

func NewFactory(approvals persistence.ApprovalRepository, auditSink audit.Sink, publisher eventbus.EventPublisher, clock clockwork.Clock) *Factory {
	return &Factory{approvals: approvals, audit: auditSink, publisher: publisher, clock: clock}
}

func (f *Factory) Type() models.ActionType {
	return models.ActionApproval
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string", "minLength": 1},
			"entity_id":    map[string]any{"type": "string"},
			"entity_type":  map[string]any{"type": "string"},
			"requested_by": map[string]any{"type": "string"},
			"approvers":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"title"},
	}
}

func (f *Factory) Create(data map[string]any) (protocol.Action, error) {
	if data == nil {
		return nil, fmt.Errorf("approval action requires data")
	}

	return &Action{factory: f, data: data}, nil
}

type Action struct {
	factory *Factory
	data    map[string]any
}

func (a *Action) Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error) {
	now := a.factory.clock.Now().UTC()

	record := &models.Approval{
		ID:          uuid.New().String(),
		Title:       stringField(a.data, "title"),
		EntityID:    stringField(a.data, "entity_id"),
		EntityType:  stringField(a.data, "entity_type"),
		RequestedBy: stringField(a.data, "requested_by"),
		Status:      models.ApprovalStatusPending,
		CreatedAt:   now,
	}

	if approvers, ok := a.data["approvers"].([]any); ok {
		for _, approver := range approvers {
			if s, ok := approver.(string); ok {
				record.Approvers = append(record.Approvers, s)
			}
		}
	}

	if err := a.factory.approvals.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}

	logger.InfoContext(ctx, "Opened approval request", "approval_id", record.ID, "approvers", record.Approvers)

	if err := a.factory.audit.Record(ctx, "approval.requested", map[string]any{
		"approval_id": record.ID,
		"workflow_id": scope.WorkflowID,
	}); err != nil {
		logger.WarnContext(ctx, "Audit record failed", "error", err)
	}

	if a.factory.publisher != nil {
		event := events.ApprovalRequested{
			BaseEvent:   events.NewBaseEvent(events.ApprovalRequestedEvent),
			ApprovalID:  record.ID,
			RequestedBy: record.RequestedBy,
			Approvers:   record.Approvers,
		}
		if err := a.factory.publisher.Publish(ctx, record.ID, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish approval.requested", "error", err)
		}
	}

	return map[string]any{
		"approval_id": record.ID,
		"status":      string(record.Status),
	}, nil
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}
