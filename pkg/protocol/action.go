// Package protocol defines the interfaces and contracts for executable actions.
package protocol

import (
	"context"
	"log/slog"

	"github.com/carelane/careflow/pkg/models"
)

// Action is one side effect executed against an execution scope.
type Action interface {
	Execute(ctx context.Context, scope models.ExecutionScope, logger *slog.Logger) (any, error)
}

// ActionFactory builds actions of one type from a configuration payload.
type ActionFactory interface {
	// Create builds an action instance from the (already rendered) data map.
	Create(data map[string]any) (Action, error)

	// Type is the action type this factory serves.
	Type() models.ActionType

	// Schema returns the JSON schema the data map must satisfy, or nil when
	// the action takes free-form data.
	Schema() map[string]any
}
