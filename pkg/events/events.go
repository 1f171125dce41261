// Package events defines event types and structures for execution-core
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the bus topic all lifecycle events are published on.
const Topic = "careflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle.
	ExecutionStartedEvent   EventType = "workflow.execution.started"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"

	// Derived work items.
	TaskCreatedEvent       EventType = "task.created"
	TaskUpdatedEvent       EventType = "task.updated"
	ReminderCreatedEvent   EventType = "reminder.created"
	ReminderSentEvent      EventType = "reminder.sent"
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalDecidedEvent   EventType = "approval.decided"

	// Automation and scheduling.
	RuleExecutedEvent       EventType = "rule.executed"
	ScheduleFiredEvent      EventType = "schedule.fired"
	NotificationQueuedEvent EventType = "notification.queued"
	AuditRecordedEvent      EventType = "audit.recorded"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh event envelope.
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	Steps       int           `json:"steps"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StepIndex   int    `json:"step_index"`
	StepName    string `json:"step_name"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type TaskCreated struct {
	BaseEvent

	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

func (e TaskCreated) GetType() EventType { return TaskCreatedEvent }

type TaskUpdated struct {
	BaseEvent

	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (e TaskUpdated) GetType() EventType { return TaskUpdatedEvent }

type ReminderCreated struct {
	BaseEvent

	ReminderID  string    `json:"reminder_id"`
	UserID      string    `json:"user_id"`
	TriggerDate time.Time `json:"trigger_date"`
}

func (e ReminderCreated) GetType() EventType { return ReminderCreatedEvent }

type ReminderSent struct {
	BaseEvent

	ReminderID string `json:"reminder_id"`
	UserID     string `json:"user_id"`
}

func (e ReminderSent) GetType() EventType { return ReminderSentEvent }

type ApprovalRequested struct {
	BaseEvent

	ApprovalID  string   `json:"approval_id"`
	RequestedBy string   `json:"requested_by"`
	Approvers   []string `json:"approvers"`
}

func (e ApprovalRequested) GetType() EventType { return ApprovalRequestedEvent }

type ApprovalDecided struct {
	BaseEvent

	ApprovalID string `json:"approval_id"`
	Status     string `json:"status"`
	DecidedBy  string `json:"decided_by"`
}

func (e ApprovalDecided) GetType() EventType { return ApprovalDecidedEvent }

type RuleExecuted struct {
	BaseEvent

	RuleID   string `json:"rule_id"`
	Executed bool   `json:"executed"`
	Actions  int    `json:"actions"`
	Failures int    `json:"failures"`
}

func (e RuleExecuted) GetType() EventType { return RuleExecutedEvent }

type ScheduleFired struct {
	BaseEvent

	ScheduleID string    `json:"schedule_id"`
	RunCount   int       `json:"run_count"`
	NextRun    time.Time `json:"next_run"`
}

func (e ScheduleFired) GetType() EventType { return ScheduleFiredEvent }

type NotificationQueued struct {
	BaseEvent

	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind"` // notification, email or sms
}

func (e NotificationQueued) GetType() EventType { return NotificationQueuedEvent }

type AuditRecorded struct {
	BaseEvent

	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

func (e AuditRecorded) GetType() EventType { return AuditRecordedEvent }
