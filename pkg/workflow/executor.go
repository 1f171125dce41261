package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/carelane/careflow/pkg/dispatch"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/otelhelper"
	"github.com/carelane/careflow/pkg/persistence"
)

// Executor runs workflows step by step: strictly sequential, fail-fast, with
// an execution record persisted for every run.
type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	dispatcher *dispatch.Dispatcher
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	clock      clockwork.Clock
	logger     *slog.Logger
}

type ExecutorOption func(*Executor)

// WithPublisher enables lifecycle events on the bus.
func WithPublisher(publisher eventbus.EventPublisher) ExecutorOption {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

// WithTracer enables a span per execution.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func NewExecutor(
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	dispatcher *dispatch.Dispatcher,
	clock clockwork.Clock,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	executor := &Executor{
		workflows:  workflows,
		executions: executions,
		dispatcher: dispatcher,
		clock:      clock,
		logger:     logger.With("module", "workflow"),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs every step of the workflow in order against the given context
// data. The first step error fails the whole run; steps after it never
// execute. A missing workflow is a hard failure with no execution record.
// The returned execution is terminal and already persisted, even when the
// run failed.
func (e *Executor) Execute(ctx context.Context, workflowID string, contextData map[string]any) (*models.WorkflowExecution, error) {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	execution := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		Context:    contextData,
		Status:     models.ExecutionStatusRunning,
		Results:    []models.StepResult{},
		Errors:     []models.StepError{},
		StartTime:  e.clock.Now().UTC(),
	}

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
	)

	var span trace.Span
	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			otelhelper.WorkflowIDKey.String(workflow.ID),
			otelhelper.ExecutionIDKey.String(execution.ID),
		)
		defer span.End()
	}

	if err := e.executions.Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
	})

	logger.InfoContext(ctx, "Workflow execution started", "steps", len(workflow.Steps))

	scope := models.ExecutionScope{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		Context:     contextData,
	}

	for i, step := range workflow.Steps {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, execution, i, step.Name, err, span, logger)
		}

		execution.CurrentStep = i

		result, err := e.dispatcher.Execute(ctx, models.ActionSpec{Type: step.Type, Data: step.Data}, scope)
		if err != nil {
			return e.fail(ctx, execution, i, step.Name, err, span, logger)
		}

		execution.Results = append(execution.Results, models.StepResult{
			StepIndex: i,
			StepName:  step.Name,
			Result:    result,
			Timestamp: e.clock.Now().UTC(),
		})

		logger.DebugContext(ctx, "Step completed", "step_index", i, "step_name", step.Name)
	}

	endTime := e.clock.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CurrentStep = len(workflow.Steps)
	execution.EndTime = &endTime

	if err := e.executions.Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		Steps:       len(execution.Results),
		Duration:    endTime.Sub(execution.StartTime),
	})

	if span != nil {
		otelhelper.SetOK(span)
	}

	logger.InfoContext(ctx, "Workflow execution completed", "steps", len(execution.Results))

	return execution, nil
}

// fail stamps the execution failed at the given step and persists it. The
// execution is returned alongside the step error so callers can inspect how
// far the run got.
func (e *Executor) fail(
	ctx context.Context,
	execution *models.WorkflowExecution,
	stepIndex int,
	stepName string,
	stepErr error,
	span trace.Span,
	logger *slog.Logger,
) (*models.WorkflowExecution, error) {
	endTime := e.clock.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.EndTime = &endTime
	execution.Errors = append(execution.Errors, models.StepError{
		StepIndex: stepIndex,
		StepName:  stepName,
		Error:     stepErr.Error(),
		Timestamp: endTime,
	})

	// Save on a fresh context: the run context may already be cancelled.
	if err := e.executions.Save(context.WithoutCancel(ctx), execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist failed execution", "error", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		StepIndex:   stepIndex,
		StepName:    stepName,
		Error:       stepErr.Error(),
	})

	if span != nil {
		otelhelper.SetError(span, stepErr, otelhelper.StepIndexKey.Int(stepIndex))
	}

	logger.ErrorContext(ctx, "Workflow execution failed",
		"step_index", stepIndex,
		"step_name", stepName,
		"error", stepErr,
	)

	return execution, fmt.Errorf("step %d (%s) failed: %w", stepIndex, stepName, stepErr)
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
