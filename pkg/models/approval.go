package models

import (
	"errors"
	"time"
)

// ApprovalStatus is monotonic: pending transitions to approved or rejected
// exactly once, then the record is terminal.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ErrApprovalDecided is returned when a decision is applied to an approval
// that already left the pending state.
var ErrApprovalDecided = errors.New("approval already decided")

// ApprovalComment is one entry of an approval's ordered comment thread.
type ApprovalComment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Approval is a pending decision attached to an entity, resolved by one of
// its approvers.
type Approval struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"        validate:"required"`
	EntityID     string            `json:"entity_id,omitempty"`
	EntityType   string            `json:"entity_type,omitempty"`
	RequestedBy  string            `json:"requested_by" validate:"required"`
	Approvers    []string          `json:"approvers"`
	Status       ApprovalStatus    `json:"status"`
	ApprovedBy   string            `json:"approved_by,omitempty"`
	ApprovedDate *time.Time        `json:"approved_date,omitempty"`
	Comments     []ApprovalComment `json:"comments,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Decide applies a terminal decision. It fails if the approval is no longer
// pending, which keeps the pending -> approved|rejected transition one-shot.
func (a *Approval) Decide(approved bool, decidedBy string, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return ErrApprovalDecided
	}

	if approved {
		a.Status = ApprovalStatusApproved
	} else {
		a.Status = ApprovalStatusRejected
	}

	a.ApprovedBy = decidedBy
	a.ApprovedDate = &now

	return nil
}
