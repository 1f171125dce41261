package registry

import (
	"github.com/jonboulle/clockwork"

	"github.com/carelane/careflow/pkg/actions/approval"
	"github.com/carelane/careflow/pkg/actions/createtask"
	"github.com/carelane/careflow/pkg/actions/notify"
	"github.com/carelane/careflow/pkg/actions/reminder"
	"github.com/carelane/careflow/pkg/actions/updatestatus"
	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/persistence"
)

// Deps carries the collaborators the built-in actions close over. Publisher
// may be nil when no event bus is wired.
type Deps struct {
	Persistence persistence.Persistence
	Notifier    notifier.Notifier
	Audit       audit.Sink
	Publisher   eventbus.EventPublisher
	Clock       clockwork.Clock
}

// RegisterDefaults installs every built-in action, including the
// workflow-step aliases that share factories with the rule action types.
func RegisterDefaults(r *Registry, deps Deps) {
	taskFactory := createtask.NewFactory(deps.Persistence.Tasks(), deps.Audit, deps.Publisher, deps.Clock)
	r.RegisterAction(taskFactory)
	r.RegisterActionAs(models.ActionTask, taskFactory)

	reminderFactory := reminder.NewFactory(deps.Persistence.Reminders(), deps.Audit, deps.Publisher, deps.Clock)
	r.RegisterAction(reminderFactory)

	approvalFactory := approval.NewFactory(deps.Persistence.Approvals(), deps.Audit, deps.Publisher, deps.Clock)
	r.RegisterAction(approvalFactory)

	updateFactory := updatestatus.NewFactory(deps.Persistence.Tasks(), deps.Audit, deps.Publisher, deps.Clock)
	r.RegisterAction(updateFactory)

	notificationFactory := notify.NewFactory(notifier.KindNotification, deps.Notifier)
	r.RegisterAction(notificationFactory)
	r.RegisterActionAs(models.ActionNotification, notificationFactory)

	emailFactory := notify.NewFactory(notifier.KindEmail, deps.Notifier)
	r.RegisterAction(emailFactory)
	r.RegisterActionAs(models.ActionEmail, emailFactory)

	smsFactory := notify.NewFactory(notifier.KindSMS, deps.Notifier)
	r.RegisterAction(smsFactory)
}
