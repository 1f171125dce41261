// Package models defines the core domain models for workflow and automation execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// WorkflowStep is one ordered step of a workflow. Its Type and Data form the
// ActionSpec the dispatcher executes when the step runs.
type WorkflowStep struct {
	Name string         `json:"name" validate:"required"`
	Type ActionType     `json:"type" validate:"required"`
	Data map[string]any `json:"data"`
}

// Workflow is a named, ordered list of steps with associated triggers and
// conditions. Steps execute strictly sequentially.
type Workflow struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"   validate:"required,min=3"`
	Type       string         `json:"type"`
	Status     WorkflowStatus `json:"status" validate:"required"`
	Steps      []WorkflowStep `json:"steps"`
	Triggers   []string       `json:"triggers,omitempty"`
	Conditions []Condition    `json:"conditions,omitempty"`
	CreatedBy  string         `json:"created_by"`
	Version    int            `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
