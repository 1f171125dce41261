// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard not-found errors all implementations return.
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("workflow execution not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrApprovalNotFound  = errors.New("approval not found")
	ErrRuleNotFound      = errors.New("automation rule not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
)

// StoreError wraps a storage failure with the operation and entity id.
type StoreError struct {
	Op       string // Operation being performed (e.g. "Save", "GetByID")
	Entity   string // Entity kind (e.g. "workflow", "reminder")
	EntityID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity, entityID string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, EntityID: entityID, Err: err}
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrWorkflowNotFound,
		ErrExecutionNotFound,
		ErrTaskNotFound,
		ErrReminderNotFound,
		ErrApprovalNotFound,
		ErrRuleNotFound,
		ErrScheduleNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
