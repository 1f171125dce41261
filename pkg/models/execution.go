package models

import "time"

// ExecutionStatus represents the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepResult records a successfully executed step, ordered by step index.
type StepResult struct {
	StepIndex int       `json:"step_index"`
	StepName  string    `json:"step_name"`
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// StepError records a failed step. An execution holds at most one because
// step failure is fatal to the run.
type StepError struct {
	StepIndex int       `json:"step_index"`
	StepName  string    `json:"step_name"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowExecution is one pass through one workflow's steps against a
// run-specific context. Results and Errors are append-only and ordered by
// step index; the record is terminal once completed or failed.
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Context     map[string]any  `json:"context,omitempty"`
	Status      ExecutionStatus `json:"status"`
	CurrentStep int             `json:"current_step"`
	Results     []StepResult    `json:"results"`
	Errors      []StepError     `json:"errors"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
}

// Terminal reports whether the execution reached a final status.
func (e *WorkflowExecution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// ExecutionScope is the slice of an execution that actions receive: the run
// identity plus the caller-supplied context data conditions and actions
// operate on.
type ExecutionScope struct {
	ExecutionID string         `json:"execution_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}
