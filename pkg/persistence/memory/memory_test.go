package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

func TestWorkflowRepository_Roundtrip(t *testing.T) {
	p := NewPersistence()

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Patient intake",
		Status: models.WorkflowStatusActive,
		Steps: []models.WorkflowStep{
			{Name: "Create chart review task", Type: models.ActionTask, Data: map[string]any{"title": "Review chart"}},
		},
	}

	require.NoError(t, p.Workflows().Save(t.Context(), workflow))

	fetched, err := p.Workflows().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Patient intake", fetched.Name)
	assert.Len(t, fetched.Steps, 1)

	// Stored record is not aliased to the caller's struct.
	fetched.Name = "changed"
	again, err := p.Workflows().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Patient intake", again.Name)

	_, err = p.Workflows().GetByID(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestReminderRepository_ListDue(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	reminders := []*models.Reminder{
		{ID: "r-due", Status: models.ReminderStatusPending, TriggerDate: now.Add(-time.Hour)},
		{ID: "r-future", Status: models.ReminderStatusPending, TriggerDate: now.Add(time.Hour)},
		{ID: "r-sent", Status: models.ReminderStatusSent, TriggerDate: now.Add(-time.Hour)},
	}
	for _, reminder := range reminders {
		require.NoError(t, p.Reminders().Save(t.Context(), reminder))
	}

	due, err := p.Reminders().ListDue(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "r-due", due[0].ID)
}

func TestReminderRepository_MarkSent_CompareAndSet(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	reminder := &models.Reminder{ID: "r-1", Status: models.ReminderStatusPending, TriggerDate: now.Add(-time.Hour)}
	require.NoError(t, p.Reminders().Save(t.Context(), reminder))

	claimed, err := p.Reminders().MarkSent(t.Context(), "r-1", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim loses the race.
	claimed, err = p.Reminders().MarkSent(t.Context(), "r-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := p.Reminders().GetByID(t.Context(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusSent, fetched.Status)
	require.NotNil(t, fetched.SentDate)
	assert.Equal(t, now, *fetched.SentDate)

	_, err = p.Reminders().MarkSent(t.Context(), "missing", now)
	assert.ErrorIs(t, err, persistence.ErrReminderNotFound)
}

func TestReminderRepository_MarkSent_Concurrent(t *testing.T) {
	p := NewPersistence()
	now := time.Now().UTC()

	reminder := &models.Reminder{ID: "r-1", Status: models.ReminderStatusPending, TriggerDate: now.Add(-time.Hour)}
	require.NoError(t, p.Reminders().Save(t.Context(), reminder))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			claimed, err := p.Reminders().MarkSent(t.Context(), "r-1", now)
			if err == nil && claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestApprovalRepository_MarkDecided_CompareAndSet(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	approval := &models.Approval{ID: "a-1", Title: "Discharge sign-off", RequestedBy: "nurse-1", Status: models.ApprovalStatusPending}
	require.NoError(t, p.Approvals().Save(t.Context(), approval))

	approved := *approval
	require.NoError(t, approved.Decide(true, "dr-a", now))

	claimed, err := p.Approvals().MarkDecided(t.Context(), &approved)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A competing rejection read the pending record before the approval
	// committed; its write must lose.
	rejected := *approval
	require.NoError(t, rejected.Decide(false, "dr-b", now.Add(time.Minute)))

	claimed, err = p.Approvals().MarkDecided(t.Context(), &rejected)
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := p.Approvals().GetByID(t.Context(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, fetched.Status)
	assert.Equal(t, "dr-a", fetched.ApprovedBy)

	_, err = p.Approvals().MarkDecided(t.Context(), &models.Approval{ID: "missing", Status: models.ApprovalStatusApproved})
	assert.ErrorIs(t, err, persistence.ErrApprovalNotFound)
}

func TestRuleRepository_ListByTrigger(t *testing.T) {
	p := NewPersistence()

	rules := []*models.AutomationRule{
		{ID: "rule-a", Trigger: "lab.result.recorded", Status: models.RuleStatusActive},
		{ID: "rule-b", Trigger: "lab.result.recorded", Status: models.RuleStatusInactive},
		{ID: "rule-c", Trigger: "appointment.missed", Status: models.RuleStatusActive},
	}
	for _, rule := range rules {
		require.NoError(t, p.Rules().Save(t.Context(), rule))
	}

	matched, err := p.Rules().ListByTrigger(t.Context(), "lab.result.recorded")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "rule-a", matched[0].ID)
}

func TestScheduleRepository_ListDue(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	schedules := []*models.Schedule{
		{ID: "s-due", Status: models.ScheduleStatusActive, NextRun: now.Add(-time.Minute)},
		{ID: "s-future", Status: models.ScheduleStatusActive, NextRun: now.Add(time.Minute)},
		{ID: "s-inactive", Status: models.ScheduleStatusInactive, NextRun: now.Add(-time.Minute)},
	}
	for _, schedule := range schedules {
		require.NoError(t, p.Schedules().Save(t.Context(), schedule))
	}

	due, err := p.Schedules().ListDue(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "s-due", due[0].ID)
}

func TestExecutionRepository_DeleteTerminalBefore(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)

	executions := []*models.WorkflowExecution{
		{ID: "e-old", WorkflowID: "wf", Status: models.ExecutionStatusCompleted, EndTime: &old},
		{ID: "e-running", WorkflowID: "wf", Status: models.ExecutionStatusRunning},
		{ID: "e-recent", WorkflowID: "wf", Status: models.ExecutionStatusFailed, EndTime: &now},
	}
	for _, execution := range executions {
		require.NoError(t, p.Executions().Save(t.Context(), execution))
	}

	removed, err := p.Executions().DeleteTerminalBefore(t.Context(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := p.Executions().ListByWorkflow(t.Context(), "wf")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
