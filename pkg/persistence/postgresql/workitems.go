package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// TaskRepository handles task records.
type TaskRepository struct {
	db *sql.DB
}

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	doc, err := marshalDoc(task)
	if err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, err)
	}

	query := `
		INSERT INTO tasks (id, status, created_at, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query, task.ID, string(task.Status), task.CreatedAt, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return queryDoc[models.Task](ctx, r.db, persistence.ErrTaskNotFound,
		"SELECT doc FROM tasks WHERE id = $1", id)
}

func (r *TaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	return queryDocs[models.Task](ctx, r.db,
		"SELECT doc FROM tasks ORDER BY created_at DESC")
}

func (r *TaskRepository) ListByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	return queryDocs[models.Task](ctx, r.db,
		"SELECT doc FROM tasks WHERE status = $1 ORDER BY created_at DESC", string(status))
}

// ReminderRepository handles reminder records. MarkSent is the only write
// path that flips a reminder to sent; the guard on the current status makes
// the transition a compare-and-set.
type ReminderRepository struct {
	db *sql.DB
}

func (r *ReminderRepository) Save(ctx context.Context, reminder *models.Reminder) error {
	doc, err := marshalDoc(reminder)
	if err != nil {
		return persistence.NewStoreError("Save", "reminder", reminder.ID, err)
	}

	query := `
		INSERT INTO reminders (id, status, trigger_date, sent_date, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_date = EXCLUDED.trigger_date,
			sent_date = EXCLUDED.sent_date,
			doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query,
		reminder.ID, string(reminder.Status), reminder.TriggerDate, reminder.SentDate, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "reminder", reminder.ID, err)
	}

	return nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, id string) (*models.Reminder, error) {
	return queryDoc[models.Reminder](ctx, r.db, persistence.ErrReminderNotFound,
		"SELECT doc FROM reminders WHERE id = $1", id)
}

func (r *ReminderRepository) List(ctx context.Context) ([]*models.Reminder, error) {
	return queryDocs[models.Reminder](ctx, r.db,
		"SELECT doc FROM reminders ORDER BY trigger_date")
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	query := `
		SELECT doc FROM reminders
		WHERE status = $1 AND trigger_date <= $2
		ORDER BY trigger_date
	`

	return queryDocs[models.Reminder](ctx, r.db, query, string(models.ReminderStatusPending), now)
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	query := `
		UPDATE reminders
		SET status = $2,
			sent_date = $3,
			doc = doc || jsonb_build_object('status', $2::text, 'sent_date', to_jsonb($3::timestamptz))
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		id, string(models.ReminderStatusSent), sentAt, string(models.ReminderStatusPending))
	if err != nil {
		return false, persistence.NewStoreError("MarkSent", "reminder", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStoreError("MarkSent", "reminder", id, err)
	}

	if affected == 1 {
		return true, nil
	}

	// Lost the race or the reminder does not exist; tell those apart.
	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1)", id).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, persistence.NewStoreError("MarkSent", "reminder", id, err)
	}

	if !exists {
		return false, persistence.ErrReminderNotFound
	}

	return false, nil
}

func (r *ReminderRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM reminders
		WHERE status = $1 AND sent_date IS NOT NULL AND sent_date < $2
	`

	result, err := r.db.ExecContext(ctx, query, string(models.ReminderStatusSent), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent reminders: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted reminders: %w", err)
	}

	return int(affected), nil
}

// ApprovalRepository handles approval records.
type ApprovalRepository struct {
	db *sql.DB
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	doc, err := marshalDoc(approval)
	if err != nil {
		return persistence.NewStoreError("Save", "approval", approval.ID, err)
	}

	query := `
		INSERT INTO approvals (id, doc)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query, approval.ID, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "approval", approval.ID, err)
	}

	return nil
}

func (r *ApprovalRepository) MarkDecided(ctx context.Context, approval *models.Approval) (bool, error) {
	doc, err := marshalDoc(approval)
	if err != nil {
		return false, persistence.NewStoreError("MarkDecided", "approval", approval.ID, err)
	}

	query := `
		UPDATE approvals
		SET doc = $2
		WHERE id = $1 AND doc->>'status' = $3
	`

	result, err := r.db.ExecContext(ctx, query,
		approval.ID, doc, string(models.ApprovalStatusPending))
	if err != nil {
		return false, persistence.NewStoreError("MarkDecided", "approval", approval.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStoreError("MarkDecided", "approval", approval.ID, err)
	}

	if affected == 1 {
		return true, nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM approvals WHERE id = $1)", approval.ID).Scan(&exists)
	if err != nil {
		return false, persistence.NewStoreError("MarkDecided", "approval", approval.ID, err)
	}

	if !exists {
		return false, persistence.ErrApprovalNotFound
	}

	return false, nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	return queryDoc[models.Approval](ctx, r.db, persistence.ErrApprovalNotFound,
		"SELECT doc FROM approvals WHERE id = $1", id)
}

func (r *ApprovalRepository) List(ctx context.Context) ([]*models.Approval, error) {
	return queryDocs[models.Approval](ctx, r.db,
		"SELECT doc FROM approvals ORDER BY doc->>'created_at' DESC")
}
