package models

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority orders tasks for assignment queues.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task is a unit of derived work, created directly or as a workflow step /
// automation action side effect.
type Task struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"  validate:"required"`
	Description   string       `json:"description,omitempty"`
	Type          string       `json:"type"`
	Priority      TaskPriority `json:"priority"`
	Status        TaskStatus   `json:"status" validate:"required"`
	AssignedTo    string       `json:"assigned_to,omitempty"`
	CreatedBy     string       `json:"created_by,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	CompletedDate *time.Time   `json:"completed_date,omitempty"`
	Dependencies  []string     `json:"dependencies,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
