package models

import "time"

// RuleStatus represents whether an automation rule participates in trigger
// handling.
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
)

// AutomationRule is a condition set plus an action set, evaluated against an
// arbitrary context on demand. Conditions combine with AND semantics; actions
// are independent side effects executed with per-action failure isolation.
type AutomationRule struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"    validate:"required,min=3"`
	Trigger        string       `json:"trigger" validate:"required"`
	Conditions     []Condition  `json:"conditions"`
	Actions        []ActionSpec `json:"actions"`
	Status         RuleStatus   `json:"status"`
	LastExecuted   *time.Time   `json:"last_executed,omitempty"`
	ExecutionCount int          `json:"execution_count"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Validate checks the rule's conditions beyond struct-tag validation, so an
// unknown operator is rejected when the rule is saved rather than silently
// evaluating to false later.
func (r *AutomationRule) Validate() error {
	for _, condition := range r.Conditions {
		if err := condition.Validate(); err != nil {
			return err
		}
	}

	return nil
}
