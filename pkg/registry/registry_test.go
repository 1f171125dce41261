package registry

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
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	r := NewRegistry(logger)

	RegisterDefaults(r, Deps{
		Persistence: memory.NewPersistence(),
		Notifier:    notifier.NewRecorder(),
		Audit:       audit.NewMemorySink(),
		Clock:       clockwork.NewFakeClock(),
	})

	return r
}

func TestRegistry_KnownTypes(t *testing.T) {
	r := newTestRegistry(t)

	for _, actionType := range []models.ActionType{
		models.ActionCreateTask,
		models.ActionTask,
		models.ActionReminder,
		models.ActionApproval,
		models.ActionUpdateStatus,
		models.ActionSendNotification,
		models.ActionNotification,
		models.ActionSendEmail,
		models.ActionEmail,
		models.ActionSMS,
	} {
		assert.True(t, r.Known(actionType), "expected %q to be registered", actionType)
	}

	assert.False(t, r.Known("escalate"))
}

func TestRegistry_CreateAction_Unknown(t *testing.T) {
	r := newTestRegistry(t)

	action, err := r.CreateAction("escalate", nil)
	assert.Nil(t, action)
	assert.ErrorIs(t, err, ErrUnknownActionType)
}

func TestRegistry_CreateAction_SchemaValidation(t *testing.T) {
	r := newTestRegistry(t)

	// Missing required title.
	_, err := r.CreateAction(models.ActionCreateTask, map[string]any{"priority": "high"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	action, err := r.CreateAction(models.ActionCreateTask, map[string]any{"title": "Review chart"})
	require.NoError(t, err)
	assert.NotNil(t, action)
}
