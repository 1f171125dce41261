package models

// ActionType is the closed set of side-effecting action types the dispatcher
// knows how to execute. Workflow steps and automation rule actions share it.
type ActionType string

const (
	ActionCreateTask       ActionType = "create_task"
	ActionSendNotification ActionType = "send_notification"
	ActionSendEmail        ActionType = "send_email"
	ActionUpdateStatus     ActionType = "update_status"

	// Workflow-step aliases.
	ActionTask         ActionType = "task"
	ActionApproval     ActionType = "approval"
	ActionReminder     ActionType = "reminder"
	ActionNotification ActionType = "notification"
	ActionEmail        ActionType = "email"
	ActionSMS          ActionType = "sms"
)

// ActionSpec names an action type and carries its configuration payload.
type ActionSpec struct {
	Type ActionType     `json:"type" validate:"required"`
	Data map[string]any `json:"data"`
}
