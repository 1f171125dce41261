package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproval_Decide(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	approval := Approval{
		Title:       "Discharge plan sign-off",
		RequestedBy: "nurse-ops",
		Approvers:   []string{"dr-lee"},
		Status:      ApprovalStatusPending,
	}

	require.NoError(t, approval.Decide(true, "dr-lee", now))
	assert.Equal(t, ApprovalStatusApproved, approval.Status)
	assert.Equal(t, "dr-lee", approval.ApprovedBy)
	require.NotNil(t, approval.ApprovedDate)
	assert.Equal(t, now, *approval.ApprovedDate)

	// Terminal: a second decision is rejected and changes nothing.
	err := approval.Decide(false, "dr-adams", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrApprovalDecided)
	assert.Equal(t, ApprovalStatusApproved, approval.Status)
	assert.Equal(t, "dr-lee", approval.ApprovedBy)
}

func TestApproval_Decide_Rejected(t *testing.T) {
	now := time.Now().UTC()
	approval := Approval{Status: ApprovalStatusPending}

	require.NoError(t, approval.Decide(false, "dr-lee", now))
	assert.Equal(t, ApprovalStatusRejected, approval.Status)
}

func TestReminder_IsDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	reminder := Reminder{Status: ReminderStatusPending, TriggerDate: now.Add(-time.Minute)}
	assert.True(t, reminder.IsDue(now))

	reminder.TriggerDate = now
	assert.True(t, reminder.IsDue(now))

	reminder.TriggerDate = now.Add(time.Minute)
	assert.False(t, reminder.IsDue(now))

	reminder.TriggerDate = now.Add(-time.Minute)
	reminder.Status = ReminderStatusSent
	assert.False(t, reminder.IsDue(now))
}

func TestWorkflowExecution_Terminal(t *testing.T) {
	execution := WorkflowExecution{Status: ExecutionStatusRunning}
	assert.False(t, execution.Terminal())

	execution.Status = ExecutionStatusCompleted
	assert.True(t, execution.Terminal())

	execution.Status = ExecutionStatusFailed
	assert.True(t, execution.Terminal())
}

func TestAutomationRule_Validate(t *testing.T) {
	rule := AutomationRule{
		Name:    "Critical lab value",
		Trigger: "lab.result.recorded",
		Conditions: []Condition{
			{Field: "critical", Operator: OperatorEquals, Value: true},
		},
	}
	assert.NoError(t, rule.Validate())

	rule.Conditions = append(rule.Conditions, Condition{Field: "status", Operator: "matches", Value: "x"})
	assert.Error(t, rule.Validate())
}
