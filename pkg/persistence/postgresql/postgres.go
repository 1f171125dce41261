// Package postgresql provides PostgreSQL persistence for the execution
// core's entity stores. Entities are stored as JSONB documents with the
// columns the sweeps and trigger lookups query on kept alongside.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflows  *WorkflowRepository
	executions *ExecutionRepository
	tasks      *TaskRepository
	reminders  *ReminderRepository
	approvals  *ApprovalRepository
	rules      *RuleRepository
	schedules  *ScheduleRepository
}

// NewPersistence connects, runs migrations and returns a ready store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		workflows:  &WorkflowRepository{db: database},
		executions: &ExecutionRepository{db: database},
		tasks:      &TaskRepository{db: database},
		reminders:  &ReminderRepository{db: database},
		approvals:  &ApprovalRepository{db: database},
		rules:      &RuleRepository{db: database},
		schedules:  &ScheduleRepository{db: database},
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Tasks() persistence.TaskRepository           { return p.tasks }
func (p *Persistence) Reminders() persistence.ReminderRepository   { return p.reminders }
func (p *Persistence) Approvals() persistence.ApprovalRepository   { return p.approvals }
func (p *Persistence) Rules() persistence.RuleRepository           { return p.rules }
func (p *Persistence) Schedules() persistence.ScheduleRepository   { return p.schedules }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
