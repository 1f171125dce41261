//go:build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflows", "executions", "tasks", "reminders", "approvals", "rules", "schedules", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("careflow_test"),
			postgres.WithUsername("careflow"),
			postgres.WithPassword("careflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx
}

func TestPersistence_WorkflowRoundtrip(t *testing.T) {
	store, ctx := setupTestDB(t)

	workflow := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Integration Test Workflow",
		Type:   "test",
		Status: models.WorkflowStatusActive,
		Steps: []models.WorkflowStep{
			{Name: "task", Type: models.ActionCreateTask, Data: map[string]any{"title": "hello"}},
		},
		Version:   1,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.Workflows().Save(ctx, workflow))

	fetched, err := store.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, fetched.Name)
	require.Len(t, fetched.Steps, 1)
	assert.Equal(t, models.ActionCreateTask, fetched.Steps[0].Type)

	all, err := store.Workflows().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Workflows().Delete(ctx, workflow.ID))

	_, err = store.Workflows().GetByID(ctx, workflow.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestPersistence_ReminderMarkSentCAS(t *testing.T) {
	store, ctx := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	reminder := &models.Reminder{
		ID:          uuid.New().String(),
		Title:       "Follow-up",
		UserID:      "nurse-1",
		TriggerDate: now.Add(-time.Hour),
		Status:      models.ReminderStatusPending,
		CreatedAt:   now,
	}
	require.NoError(t, store.Reminders().Save(ctx, reminder))

	due, err := store.Reminders().ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := store.Reminders().MarkSent(ctx, reminder.ID, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Only one claim wins.
	claimed, err = store.Reminders().MarkSent(ctx, reminder.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := store.Reminders().GetByID(ctx, reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusSent, fetched.Status)
	require.NotNil(t, fetched.SentDate)

	_, err = store.Reminders().MarkSent(ctx, "missing", now)
	require.ErrorIs(t, err, persistence.ErrReminderNotFound)
}

func TestPersistence_ApprovalMarkDecidedCAS(t *testing.T) {
	store, ctx := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	approval := &models.Approval{
		ID:          uuid.New().String(),
		Title:       "Discharge sign-off",
		RequestedBy: "nurse-1",
		Approvers:   []string{"dr-a", "dr-b"},
		Status:      models.ApprovalStatusPending,
		CreatedAt:   now,
	}
	require.NoError(t, store.Approvals().Save(ctx, approval))

	approved := *approval
	require.NoError(t, approved.Decide(true, "dr-a", now))

	claimed, err := store.Approvals().MarkDecided(ctx, &approved)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A rejection that read the record while it was still pending loses.
	rejected := *approval
	require.NoError(t, rejected.Decide(false, "dr-b", now))

	claimed, err = store.Approvals().MarkDecided(ctx, &rejected)
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, fetched.Status)
	assert.Equal(t, "dr-a", fetched.ApprovedBy)

	_, err = store.Approvals().MarkDecided(ctx, &models.Approval{ID: "missing", Status: models.ApprovalStatusApproved})
	require.ErrorIs(t, err, persistence.ErrApprovalNotFound)
}

func TestPersistence_RuleTriggerLookup(t *testing.T) {
	store, ctx := setupTestDB(t)

	active := &models.AutomationRule{
		ID:      uuid.New().String(),
		Name:    "Active rule",
		Trigger: "lab.result.recorded",
		Status:  models.RuleStatusActive,
	}
	inactive := &models.AutomationRule{
		ID:      uuid.New().String(),
		Name:    "Inactive rule",
		Trigger: "lab.result.recorded",
		Status:  models.RuleStatusInactive,
	}

	require.NoError(t, store.Rules().Save(ctx, active))
	require.NoError(t, store.Rules().Save(ctx, inactive))

	matched, err := store.Rules().ListByTrigger(ctx, "lab.result.recorded")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, active.ID, matched[0].ID)
}

func TestPersistence_ScheduleDueAndCleanup(t *testing.T) {
	store, ctx := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	expired := now.Add(-time.Hour)

	due := &models.Schedule{
		ID:      uuid.New().String(),
		Name:    "Due schedule",
		Status:  models.ScheduleStatusActive,
		NextRun: now.Add(-time.Minute),
	}
	ended := &models.Schedule{
		ID:      uuid.New().String(),
		Name:    "Ended schedule",
		Status:  models.ScheduleStatusActive,
		NextRun: now.Add(-time.Minute),
		EndDate: &expired,
	}
	require.NoError(t, store.Schedules().Save(ctx, due))
	require.NoError(t, store.Schedules().Save(ctx, ended))

	dueList, err := store.Schedules().ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueList, 1)
	assert.Equal(t, due.ID, dueList[0].ID)

	// Cleanup paths: old terminal execution and old sent reminder go away.
	old := now.Add(-60 * 24 * time.Hour)
	require.NoError(t, store.Executions().Save(ctx, &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: "wf",
		Status:     models.ExecutionStatusCompleted,
		StartTime:  old,
		EndTime:    &old,
	}))
	require.NoError(t, store.Reminders().Save(ctx, &models.Reminder{
		ID:          uuid.New().String(),
		Title:       "Old",
		UserID:      "u",
		TriggerDate: old,
		Status:      models.ReminderStatusSent,
		SentDate:    &old,
	}))

	removedExecutions, err := store.Executions().DeleteTerminalBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removedExecutions)

	removedReminders, err := store.Reminders().DeleteSentBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removedReminders)
}
