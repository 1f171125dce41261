package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleFrequency selects the offset added to "now" when a schedule's next
// run is recomputed after a firing.
type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// ScheduleStatus represents whether a schedule is picked up by the sweep.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusInactive ScheduleStatus = "inactive"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Well-known schedule types the sweeper handles itself; any other type
// dispatches the schedule's Action.
const (
	ScheduleTypeReminderProcessing = "reminder_processing"
	ScheduleTypeCleanup            = "cleanup"
)

// Schedule is a recurring trigger. Each firing stamps LastRun, increments
// RunCount and recomputes NextRun strictly forward from the firing time.
type Schedule struct {
	ID        string            `json:"id"`
	Name      string            `json:"name" validate:"required,min=3"`
	Type      string            `json:"type"`
	Frequency ScheduleFrequency `json:"frequency"`

	// CronExpression, when set, takes precedence over Frequency for next-run
	// computation. Standard 5-field format (minute hour day month weekday).
	CronExpression string `json:"cron_expression,omitempty"`

	Action    ActionSpec     `json:"action"`
	StartDate time.Time      `json:"start_date"`
	EndDate   *time.Time     `json:"end_date,omitempty"`
	NextRun   time.Time      `json:"next_run"`
	Status    ScheduleStatus `json:"status"`
	LastRun   *time.Time     `json:"last_run,omitempty"`
	RunCount  int            `json:"run_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.Status != ScheduleStatusActive {
		return false
	}

	if s.EndDate != nil && now.After(*s.EndDate) {
		return false
	}

	return !s.NextRun.After(now)
}

// NextAfter computes the next run time strictly after the given reference
// time. Frequencies map to fixed offsets (daily 1d, weekly 7d, monthly 30d,
// anything else 1d); a cron expression overrides them.
func (s *Schedule) NextAfter(now time.Time) (time.Time, error) {
	if s.CronExpression != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

		cronSchedule, err := parser.Parse(s.CronExpression)
		if err != nil {
			return time.Time{}, err
		}

		return cronSchedule.Next(now), nil
	}

	return now.Add(s.frequencyOffset()), nil
}

func (s *Schedule) frequencyOffset() time.Duration {
	switch s.Frequency {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}

	return 24 * time.Hour
}

// Validate performs validation beyond struct tags, including the cron
// expression when one is set.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return ErrInvalidSchedule
	}

	if s.CronExpression != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s.CronExpression); err != nil {
			return err
		}
	}

	return nil
}
