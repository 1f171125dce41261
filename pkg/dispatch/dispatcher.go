// Package dispatch executes action specs against the registry: template
// rendering, factory lookup and the legacy unknown-type escape hatch live
// here so the workflow executor and the rule engine share one code path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/registry"
	"github.com/carelane/careflow/pkg/template"
)

type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger

	// legacyUnknownTypes restores the historical behavior of treating an
	// unregistered action type as a successful no-op instead of an error.
	legacyUnknownTypes bool
}

type Option func(*Dispatcher)

// WithLegacyUnknownTypes makes unknown action types return a generic success
// result instead of failing. Off by default.
func WithLegacyUnknownTypes(enabled bool) Option {
	return func(d *Dispatcher) {
		d.legacyUnknownTypes = enabled
	}
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "dispatch"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Execute renders the spec's data against the scope, builds the action and
// runs it.
func (d *Dispatcher) Execute(ctx context.Context, spec models.ActionSpec, scope models.ExecutionScope) (any, error) {
	logger := d.logger.With(
		"action_type", spec.Type,
		"execution_id", scope.ExecutionID,
	)

	if !d.registry.Known(spec.Type) {
		if d.legacyUnknownTypes {
			logger.WarnContext(ctx, "Unknown action type treated as success (legacy compatibility)")

			return map[string]any{"success": true}, nil
		}

		return nil, fmt.Errorf("%w: %q", registry.ErrUnknownActionType, spec.Type)
	}

	data, err := template.RenderData(spec.Data, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to render action data: %w", err)
	}

	action, err := d.registry.CreateAction(spec.Type, data)
	if err != nil {
		return nil, err
	}

	result, err := action.Execute(ctx, scope, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Action failed", "error", err)

		return nil, err
	}

	return result, nil
}

// IsUnknownType reports whether an execution failure came from an
// unregistered action type.
func IsUnknownType(err error) bool {
	return errors.Is(err, registry.ErrUnknownActionType)
}
