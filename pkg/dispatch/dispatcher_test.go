package dispatch

import (
	"log/slog"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/persistence/memory"
	"github.com/carelane/careflow/pkg/registry"
)

type testEnv struct {
	dispatcher  *Dispatcher
	persistence *memory.Persistence
	recorder    *notifier.Recorder
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	persistence := memory.NewPersistence()
	recorder := notifier.NewRecorder()

	reg := registry.NewRegistry(logger)
	registry.RegisterDefaults(reg, registry.Deps{
		Persistence: persistence,
		Notifier:    recorder,
		Audit:       audit.NewMemorySink(),
		Clock:       clockwork.NewFakeClock(),
	})

	return &testEnv{
		dispatcher:  NewDispatcher(reg, logger, opts...),
		persistence: persistence,
		recorder:    recorder,
	}
}

func TestDispatcher_Execute_CreateTask(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.dispatcher.Execute(t.Context(), models.ActionSpec{
		Type: models.ActionCreateTask,
		Data: map[string]any{"title": "Review incoming labs", "priority": "high"},
	}, models.ExecutionScope{})
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, resultMap["task_id"])

	tasks, err := env.persistence.Tasks().List(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review incoming labs", tasks[0].Title)
	assert.Equal(t, models.TaskPriorityHigh, tasks[0].Priority)
}

func TestDispatcher_Execute_TemplateRendering(t *testing.T) {
	env := newTestEnv(t)

	scope := models.ExecutionScope{Context: map[string]any{"patient": "p-42"}}

	_, err := env.dispatcher.Execute(t.Context(), models.ActionSpec{
		Type: models.ActionTask,
		Data: map[string]any{"title": "Follow up for {{.context.patient}}"},
	}, scope)
	require.NoError(t, err)

	tasks, err := env.persistence.Tasks().List(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Follow up for p-42", tasks[0].Title)
}

func TestDispatcher_Execute_Notification(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dispatcher.Execute(t.Context(), models.ActionSpec{
		Type: models.ActionSendNotification,
		Data: map[string]any{"user_id": "u-1", "title": "Result ready"},
	}, models.ExecutionScope{})
	require.NoError(t, err)

	sent := env.recorder.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notifier.KindNotification, sent[0].Kind)
	assert.Equal(t, "u-1", sent[0].Notification.UserID)
}

func TestDispatcher_Execute_UnknownType(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.dispatcher.Execute(t.Context(), models.ActionSpec{Type: "escalate"}, models.ExecutionScope{})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, IsUnknownType(err))
}

func TestDispatcher_Execute_UnknownType_Legacy(t *testing.T) {
	env := newTestEnv(t, WithLegacyUnknownTypes(true))

	result, err := env.dispatcher.Execute(t.Context(), models.ActionSpec{Type: "escalate"}, models.ExecutionScope{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, result)
}
