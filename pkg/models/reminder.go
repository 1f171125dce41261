package models

import "time"

// ReminderStatus is monotonic: pending transitions to sent exactly once and
// never back.
type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "pending"
	ReminderStatusSent    ReminderStatus = "sent"
)

// Reminder is a deferred notification tied to an entity, dispatched by the
// sweeper when its trigger date passes.
type Reminder struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"        validate:"required"`
	Message     string         `json:"message"`
	UserID      string         `json:"user_id"      validate:"required"`
	EntityID    string         `json:"entity_id,omitempty"`
	EntityType  string         `json:"entity_type,omitempty"`
	TriggerDate time.Time      `json:"trigger_date" validate:"required"`
	Status      ReminderStatus `json:"status"`
	SentDate    *time.Time     `json:"sent_date,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsDue reports whether the reminder should be dispatched at the given time.
func (r *Reminder) IsDue(now time.Time) bool {
	return r.Status == ReminderStatusPending && !r.TriggerDate.After(now)
}
