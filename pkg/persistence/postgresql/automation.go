package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// RuleRepository handles automation rule records.
type RuleRepository struct {
	db *sql.DB
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	doc, err := marshalDoc(rule)
	if err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	query := `
		INSERT INTO rules (id, trigger, status, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			trigger = EXCLUDED.trigger,
			status = EXCLUDED.status,
			doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query, rule.ID, rule.Trigger, string(rule.Status), doc)
	if err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	return queryDoc[models.AutomationRule](ctx, r.db, persistence.ErrRuleNotFound,
		"SELECT doc FROM rules WHERE id = $1", id)
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.AutomationRule, error) {
	return queryDocs[models.AutomationRule](ctx, r.db,
		"SELECT doc FROM rules ORDER BY doc->>'name'")
}

func (r *RuleRepository) ListByTrigger(ctx context.Context, trigger string) ([]*models.AutomationRule, error) {
	query := `
		SELECT doc FROM rules
		WHERE trigger = $1 AND status = $2
		ORDER BY doc->>'name'
	`

	return queryDocs[models.AutomationRule](ctx, r.db, query, trigger, string(models.RuleStatusActive))
}

// ScheduleRepository handles schedule records.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	doc, err := marshalDoc(schedule)
	if err != nil {
		return persistence.NewStoreError("Save", "schedule", schedule.ID, err)
	}

	query := `
		INSERT INTO schedules (id, status, next_run, end_date, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			next_run = EXCLUDED.next_run,
			end_date = EXCLUDED.end_date,
			doc = EXCLUDED.doc
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID, string(schedule.Status), schedule.NextRun, schedule.EndDate, doc)
	if err != nil {
		return persistence.NewStoreError("Save", "schedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	return queryDoc[models.Schedule](ctx, r.db, persistence.ErrScheduleNotFound,
		"SELECT doc FROM schedules WHERE id = $1", id)
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	return queryDocs[models.Schedule](ctx, r.db,
		"SELECT doc FROM schedules ORDER BY next_run")
}

func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT doc FROM schedules
		WHERE status = $1 AND next_run <= $2 AND (end_date IS NULL OR end_date >= $2)
		ORDER BY next_run
	`

	return queryDocs[models.Schedule](ctx, r.db, query, string(models.ScheduleStatusActive), now)
}
