package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_IsDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		schedule Schedule
		want     bool
	}{
		{
			name:     "active and due",
			schedule: Schedule{Status: ScheduleStatusActive, NextRun: past},
			want:     true,
		},
		{
			name:     "due exactly now",
			schedule: Schedule{Status: ScheduleStatusActive, NextRun: now},
			want:     true,
		},
		{
			name:     "not yet due",
			schedule: Schedule{Status: ScheduleStatusActive, NextRun: future},
			want:     false,
		},
		{
			name:     "inactive",
			schedule: Schedule{Status: ScheduleStatusInactive, NextRun: past},
			want:     false,
		},
		{
			name:     "past end date",
			schedule: Schedule{Status: ScheduleStatusActive, NextRun: past, EndDate: &past},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.schedule.IsDue(now))
		})
	}
}

func TestSchedule_NextAfter_Frequency(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency ScheduleFrequency
		want      time.Time
	}{
		{FrequencyDaily, now.Add(24 * time.Hour)},
		{FrequencyWeekly, now.Add(7 * 24 * time.Hour)},
		{FrequencyMonthly, now.Add(30 * 24 * time.Hour)},
		{"hourly", now.Add(24 * time.Hour)}, // unknown frequency defaults to daily
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			schedule := Schedule{Frequency: tt.frequency}

			next, err := schedule.NextAfter(now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestSchedule_NextAfter_Cron(t *testing.T) {
	schedule := Schedule{CronExpression: "0 8 * * *", Frequency: FrequencyWeekly}

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	next, err := schedule.NextAfter(now)
	require.NoError(t, err)

	// Cron takes precedence over the weekly frequency.
	assert.Equal(t, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), next)
}

func TestSchedule_NextAfter_ForwardProgress(t *testing.T) {
	schedule := Schedule{Frequency: FrequencyDaily}
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	now := start
	for range 5 {
		next, err := schedule.NextAfter(now)
		require.NoError(t, err)
		assert.True(t, next.After(now))
		now = next
	}

	assert.False(t, now.Before(start.Add(5*24*time.Hour)))
}

func TestSchedule_Validate(t *testing.T) {
	schedule := Schedule{Name: "Nightly cleanup", CronExpression: "not a cron"}
	assert.Error(t, schedule.Validate())

	schedule.CronExpression = "0 2 * * *"
	assert.NoError(t, schedule.Validate())

	schedule.Name = ""
	assert.ErrorIs(t, schedule.Validate(), ErrInvalidSchedule)
}
