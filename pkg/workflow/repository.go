// Package workflow provides workflow definitions and their step-by-step
// execution.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// Repository is the caller-facing surface for workflow definitions. It owns
// id generation, timestamps, validation and audit on top of the store.
type Repository struct {
	workflows persistence.WorkflowRepository
	validate  *validator.Validate
	audit     audit.Sink
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewRepository(workflows persistence.WorkflowRepository, auditSink audit.Sink, clock clockwork.Clock, logger *slog.Logger) *Repository {
	return &Repository{
		workflows: workflows,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		audit:     auditSink,
		clock:     clock,
		logger:    logger,
	}
}

func (r *Repository) record(ctx context.Context, action string, data map[string]any) {
	if err := r.audit.Record(ctx, action, data); err != nil {
		r.logger.WarnContext(ctx, "Failed to write audit record", "action", action, "error", err)
	}
}

func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	now := r.clock.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := r.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	for _, condition := range workflow.Conditions {
		if err := condition.Validate(); err != nil {
			return nil, fmt.Errorf("invalid workflow: %w", err)
		}
	}

	if err := r.workflows.Save(ctx, workflow); err != nil {
		return nil, err
	}

	r.record(ctx, "workflow.created", map[string]any{
		"workflow_id": workflow.ID,
		"name":        workflow.Name,
	})

	return workflow, nil
}

// Update re-saves a workflow under an existing id, preserving its creation
// time. The version is taken as given; bumping it is the caller's choice.
func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = r.clock.Now().UTC()

	if err := r.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := r.workflows.Save(ctx, workflow); err != nil {
		return nil, err
	}

	r.record(ctx, "workflow.updated", map[string]any{"workflow_id": id})

	return workflow, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.workflows.GetByID(ctx, id)
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	return r.workflows.List(ctx)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.workflows.Delete(ctx, id); err != nil {
		return err
	}

	r.record(ctx, "workflow.deleted", map[string]any{"workflow_id": id})

	return nil
}
