// Package registry maps action types to their factories and validates action
// configuration before execution.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/protocol"
)

// ErrUnknownActionType is returned when no factory is registered for a type.
var ErrUnknownActionType = errors.New("action type not registered")

type Registry struct {
	logger          *slog.Logger
	actionFactories map[models.ActionType]protocol.ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger,
		actionFactories: make(map[models.ActionType]protocol.ActionFactory),
	}
}

// RegisterAction installs a factory under its own type.
func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.Type()] = factory
}

// RegisterActionAs installs a factory under an alias type. Workflow steps use
// short types (task, email) that share factories with the rule action types.
func (r *Registry) RegisterActionAs(actionType models.ActionType, factory protocol.ActionFactory) {
	r.actionFactories[actionType] = factory
}

// Known reports whether an action type has a registered factory.
func (r *Registry) Known(actionType models.ActionType) bool {
	_, ok := r.actionFactories[actionType]

	return ok
}

// CreateAction validates the data against the factory's schema and builds the
// action.
func (r *Registry) CreateAction(actionType models.ActionType, data map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, actionType)
	}

	if err := r.validateData(factory, data); err != nil {
		return nil, err
	}

	return factory.Create(data)
}

func (r *Registry) validateData(factory protocol.ActionFactory, data map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %q action data: %w", factory.Type(), err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid %q action data: %v", factory.Type(), details)
	}

	return nil
}
