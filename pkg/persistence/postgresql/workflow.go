package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	doc, err := marshalDoc(workflow)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, created_at, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query, workflow.ID, workflow.CreatedAt, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return queryDoc[models.Workflow](ctx, r.db, persistence.ErrWorkflowNotFound,
		"SELECT doc FROM workflows WHERE id = $1", id)
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	return queryDocs[models.Workflow](ctx, r.db,
		"SELECT doc FROM workflows ORDER BY created_at DESC")
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

// ExecutionRepository handles workflow execution records.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	doc, err := marshalDoc(execution)
	if err != nil {
		return persistence.NewStoreError("Save", "execution", execution.ID, err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, end_time, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, string(execution.Status), execution.EndTime, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "execution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return queryDoc[models.WorkflowExecution](ctx, r.db, persistence.ErrExecutionNotFound,
		"SELECT doc FROM executions WHERE id = $1", id)
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return queryDocs[models.WorkflowExecution](ctx, r.db,
		"SELECT doc FROM executions WHERE workflow_id = $1 ORDER BY doc->>'start_time' DESC", workflowID)
}

func (r *ExecutionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM executions
		WHERE status IN ($1, $2) AND end_time IS NOT NULL AND end_time < $3
	`

	result, err := r.db.ExecContext(ctx, query,
		string(models.ExecutionStatusCompleted), string(models.ExecutionStatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted executions: %w", err)
	}

	return int(affected), nil
}
