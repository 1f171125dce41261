// Package notify provides the actions that hand a message to the notifier
// collaborator (in-app notification, email or SMS).
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/protocol"
)

// Factory builds notify actions for one delivery kind. One factory instance
// is registered per kind, under both the rule action type and the
// workflow-step alias.
type Factory struct {
	kind     notifier.Kind
	notifier notifier.Notifier
}

func NewFactory(kind notifier.Kind, n notifier.Notifier) *Factory {
	return &Factory{kind: kind, notifier: n}
}

func (f *Factory) Type() models.ActionType {
	switch f.kind {
	case notifier.KindEmail:
		return models.ActionSendEmail
	case notifier.KindSMS:
		return models.ActionSMS
	default:
		return models.ActionSendNotification
	}
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_id": map[string]any{"type": "string"},
			"title":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
		},
	}
}

func (f *Factory) Create(data map[string]any) (protocol.Action, error) {
	if data == nil {
		data = map[string]any{}
	}

	return &Action{factory: f, data: data}, nil
}

type Action struct {
	factory *Factory
	data    map[string]any
}

func (a *Action) Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error) {
	notification := notifier.Notification{
		UserID:  stringField(a.data, "user_id"),
		Title:   stringField(a.data, "title"),
		Message: stringField(a.data, "message"),
		Type:    stringField(a.data, "type"),
	}

	if notification.UserID == "" {
		notification.UserID, _ = scope.Context["user_id"].(string)
	}

	var err error

	switch a.factory.kind {
	case notifier.KindEmail:
		err = a.factory.notifier.SendEmail(ctx, notification)
	case notifier.KindSMS:
		err = a.factory.notifier.SendSMS(ctx, notification)
	default:
		err = a.factory.notifier.Send(ctx, notification)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", a.factory.kind, err)
	}

	logger.InfoContext(ctx, "Dispatched notification", "kind", a.factory.kind, "user_id", notification.UserID)

	return map[string]any{
		"dispatched": true,
		"kind":       string(a.factory.kind),
	}, nil
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}
