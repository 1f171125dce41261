package workitems

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/persistence/memory"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

type serviceEnv struct {
	service     *Service
	persistence *memory.Persistence
	recorder    *notifier.Recorder
	sink        *audit.MemorySink
	clock       *clockwork.FakeClock
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	store := memory.NewPersistence()
	recorder := notifier.NewRecorder()
	sink := audit.NewMemorySink()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	return &serviceEnv{
		service:     NewService(store, recorder, sink, clock, newTestLogger()),
		persistence: store,
		recorder:    recorder,
		sink:        sink,
		clock:       clock,
	}
}

func TestService_CreateTask_Defaults(t *testing.T) {
	env := newServiceEnv(t)

	task, err := env.service.CreateTask(t.Context(), &models.Task{Title: "Chart review"})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.Equal(t, env.clock.Now().UTC(), task.CreatedAt)

	records := env.sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "task.created", records[0].Action)
}

func TestService_CreateTask_RequiresTitle(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.CreateTask(t.Context(), &models.Task{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task")
}

func TestService_UpdateTaskStatus_CompletionStampsDate(t *testing.T) {
	env := newServiceEnv(t)

	task, err := env.service.CreateTask(t.Context(), &models.Task{Title: "Chart review"})
	require.NoError(t, err)
	require.Nil(t, task.CompletedDate)

	env.clock.Advance(2 * time.Hour)

	updated, err := env.service.UpdateTaskStatus(t.Context(), task.ID, models.TaskStatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedDate)
	assert.Equal(t, env.clock.Now().UTC(), *updated.CompletedDate)
}

func TestService_UpdateTaskStatus_NotFound(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.UpdateTaskStatus(t.Context(), "missing", models.TaskStatusCompleted)
	require.ErrorIs(t, err, persistence.ErrTaskNotFound)
}

func TestService_CreateReminder(t *testing.T) {
	env := newServiceEnv(t)

	trigger := env.clock.Now().Add(24 * time.Hour)
	reminder, err := env.service.CreateReminder(t.Context(), &models.Reminder{
		Title:       "Follow-up call",
		UserID:      "nurse-1",
		TriggerDate: trigger,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReminderStatusPending, reminder.Status)
	assert.Nil(t, reminder.SentDate)

	stored, err := env.persistence.Reminders().GetByID(t.Context(), reminder.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsDue(env.clock.Now()))
	assert.True(t, stored.IsDue(trigger))
}

func TestService_CreateApproval_NotifiesApprovers(t *testing.T) {
	env := newServiceEnv(t)

	approval, err := env.service.CreateApproval(t.Context(), &models.Approval{
		Title:       "Discharge sign-off",
		RequestedBy: "nurse-1",
		Approvers:   []string{"dr-a", "dr-b"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, approval.Status)

	sent := env.recorder.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "dr-a", sent[0].Notification.UserID)
	assert.Equal(t, "dr-b", sent[1].Notification.UserID)
}

func TestService_ProcessApproval(t *testing.T) {
	env := newServiceEnv(t)

	approval, err := env.service.CreateApproval(t.Context(), &models.Approval{
		Title:       "Discharge sign-off",
		RequestedBy: "nurse-1",
		Approvers:   []string{"dr-a"},
	})
	require.NoError(t, err)

	decided, err := env.service.ProcessApproval(t.Context(), approval.ID, true, "dr-a", "looks good")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusApproved, decided.Status)
	assert.Equal(t, "dr-a", decided.ApprovedBy)
	require.NotNil(t, decided.ApprovedDate)
	require.Len(t, decided.Comments, 1)
	assert.Equal(t, "looks good", decided.Comments[0].Text)

	// The requester gets the decision notification after the approver's
	// request notification.
	sent := env.recorder.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "nurse-1", sent[1].Notification.UserID)
}

func TestService_ProcessApproval_Terminal(t *testing.T) {
	env := newServiceEnv(t)

	approval, err := env.service.CreateApproval(t.Context(), &models.Approval{
		Title:       "Discharge sign-off",
		RequestedBy: "nurse-1",
	})
	require.NoError(t, err)

	_, err = env.service.ProcessApproval(t.Context(), approval.ID, false, "dr-a", "")
	require.NoError(t, err)

	_, err = env.service.ProcessApproval(t.Context(), approval.ID, true, "dr-b", "")
	require.ErrorIs(t, err, models.ErrApprovalDecided)

	stored, err := env.persistence.Approvals().GetByID(t.Context(), approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, stored.Status)
}

// staleApprovalStore serves a snapshot taken while the approval was still
// pending, standing in for a second decision that read before the first
// committed.
type staleApprovalStore struct {
	persistence.Persistence
	approvals *staleApprovalRepository
}

func (s *staleApprovalStore) Approvals() persistence.ApprovalRepository { return s.approvals }

type staleApprovalRepository struct {
	persistence.ApprovalRepository
	snapshot *models.Approval
}

func (r *staleApprovalRepository) GetByID(_ context.Context, _ string) (*models.Approval, error) {
	copied := *r.snapshot

	return &copied, nil
}

func TestService_ProcessApproval_ConcurrentDecisionLoses(t *testing.T) {
	env := newServiceEnv(t)

	approval, err := env.service.CreateApproval(t.Context(), &models.Approval{
		Title:       "Discharge sign-off",
		RequestedBy: "nurse-1",
	})
	require.NoError(t, err)

	snapshot, err := env.persistence.Approvals().GetByID(t.Context(), approval.ID)
	require.NoError(t, err)

	_, err = env.service.ProcessApproval(t.Context(), approval.ID, true, "dr-a", "")
	require.NoError(t, err)

	// The competing decision still sees the pending snapshot; its store
	// claim must fail rather than overwrite the approval.
	stale := &staleApprovalStore{
		Persistence: env.persistence,
		approvals:   &staleApprovalRepository{ApprovalRepository: env.persistence.Approvals(), snapshot: snapshot},
	}
	racer := NewService(stale, env.recorder, env.sink, env.clock, newTestLogger())

	_, err = racer.ProcessApproval(t.Context(), approval.ID, false, "dr-b", "")
	require.ErrorIs(t, err, models.ErrApprovalDecided)

	stored, err := env.persistence.Approvals().GetByID(t.Context(), approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, "dr-a", stored.ApprovedBy)
}
