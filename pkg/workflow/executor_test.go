package workflow

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/dispatch"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/persistence/memory"
	"github.com/carelane/careflow/pkg/registry"
)

type executorEnv struct {
	executor    *Executor
	persistence *memory.Persistence
	recorder    *notifier.Recorder
	clock       *clockwork.FakeClock
}

func newExecutorEnv(t *testing.T) *executorEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := memory.NewPersistence()
	recorder := notifier.NewRecorder()
	clock := clockwork.NewFakeClock()

	reg := registry.NewRegistry(logger)
	registry.RegisterDefaults(reg, registry.Deps{
		Persistence: store,
		Notifier:    recorder,
		Audit:       audit.NewMemorySink(),
		Clock:       clock,
	})

	dispatcher := dispatch.NewDispatcher(reg, logger)

	return &executorEnv{
		executor:    NewExecutor(store.Workflows(), store.Executions(), dispatcher, clock, logger),
		persistence: store,
		recorder:    recorder,
		clock:       clock,
	}
}

func (env *executorEnv) saveWorkflow(t *testing.T, steps ...models.WorkflowStep) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:      "wf-1",
		Name:    "Test Workflow",
		Type:    "test",
		Status:  models.WorkflowStatusActive,
		Steps:   steps,
		Version: 1,
	}
	require.NoError(t, env.persistence.Workflows().Save(t.Context(), workflow))

	return workflow
}

func TestExecutor_Execute_AllStepsSucceed(t *testing.T) {
	env := newExecutorEnv(t)
	env.saveWorkflow(t,
		models.WorkflowStep{Name: "first", Type: models.ActionCreateTask, Data: map[string]any{"title": "a"}},
		models.WorkflowStep{Name: "second", Type: models.ActionCreateTask, Data: map[string]any{"title": "b"}},
		models.WorkflowStep{Name: "third", Type: models.ActionSendNotification, Data: map[string]any{"title": "done", "message": "all set"}},
	)

	execution, err := env.executor.Execute(t.Context(), "wf-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 3, execution.CurrentStep)
	require.Len(t, execution.Results, 3)
	assert.Empty(t, execution.Errors)
	require.NotNil(t, execution.EndTime)

	// Results keep step order.
	for i, result := range execution.Results {
		assert.Equal(t, i, result.StepIndex)
	}

	tasks, err := env.persistence.Tasks().List(t.Context())
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Len(t, env.recorder.Sent(), 1)
}

func TestExecutor_Execute_FailFast(t *testing.T) {
	env := newExecutorEnv(t)
	env.saveWorkflow(t,
		models.WorkflowStep{Name: "ok", Type: models.ActionCreateTask, Data: map[string]any{"title": "a"}},
		// create_task requires a title, so this step fails schema validation.
		models.WorkflowStep{Name: "broken", Type: models.ActionCreateTask, Data: map[string]any{}},
		models.WorkflowStep{Name: "never runs", Type: models.ActionCreateTask, Data: map[string]any{"title": "c"}},
	)

	execution, err := env.executor.Execute(t.Context(), "wf-1", nil)
	require.Error(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, 1, execution.CurrentStep)
	require.Len(t, execution.Results, 1)
	require.Len(t, execution.Errors, 1)
	assert.Equal(t, 1, execution.Errors[0].StepIndex)
	assert.Equal(t, "broken", execution.Errors[0].StepName)
	require.NotNil(t, execution.EndTime)

	// The step after the failure never executed.
	tasks, err := env.persistence.Tasks().List(t.Context())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	// The terminal record is persisted.
	stored, err := env.persistence.Executions().GetByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
}

func TestExecutor_Execute_WorkflowNotFound(t *testing.T) {
	env := newExecutorEnv(t)

	execution, err := env.executor.Execute(t.Context(), "missing", nil)
	require.Error(t, err)
	assert.Nil(t, execution)
	assert.True(t, errors.Is(err, persistence.ErrWorkflowNotFound))

	// No execution record for a missing workflow.
	executions, err := env.persistence.Executions().ListByWorkflow(t.Context(), "missing")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecutor_Execute_ContextFlowsIntoSteps(t *testing.T) {
	env := newExecutorEnv(t)
	env.saveWorkflow(t,
		models.WorkflowStep{Name: "task", Type: models.ActionCreateTask, Data: map[string]any{
			"title": "Call {{.context.patient_name}}",
		}},
		models.WorkflowStep{Name: "notify", Type: models.ActionSendNotification, Data: map[string]any{
			"title":   "Heads up",
			"message": "Workflow ran for {{.context.patient_name}}",
		}},
	)

	execution, err := env.executor.Execute(t.Context(), "wf-1", map[string]any{"patient_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	tasks, err := env.persistence.Tasks().List(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Ada", tasks[0].Title)

	sent := env.recorder.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Workflow ran for Ada", sent[0].Notification.Message)
}

func TestExecutor_Execute_EmptyWorkflowCompletes(t *testing.T) {
	env := newExecutorEnv(t)
	env.saveWorkflow(t)

	execution, err := env.executor.Execute(t.Context(), "wf-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, execution.Results)
}
