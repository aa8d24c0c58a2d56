package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/scheduler"
)

func intPtr(n int) *int { return &n }

func dailySchedule(timeOfDay string) *domain.ScheduleDefinition {
	return &domain.ScheduleDefinition{
		Kind:          domain.KindGeneralDocket,
		CredentialIDs: []int64{1},
		Periodicity:   domain.PeriodicityDaily,
		TimeOfDay:     timeOfDay,
		Active:        true,
	}
}

func intervalSchedule(days int, timeOfDay string) *domain.ScheduleDefinition {
	s := dailySchedule(timeOfDay)
	s.Periodicity = domain.PeriodicityEveryNDays
	s.IntervalDays = intPtr(days)
	return s
}

func TestComputeNextRunDaily(t *testing.T) {
	s := dailySchedule("07:00")

	// Ran at 07:00 sharp: the next occurrence is strictly after, so
	// tomorrow.
	lastRun := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)
	next, err := scheduler.ComputeNextRun(s, lastRun, lastRun)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC), next)

	// Ran early in the day: today's 07:00 is still ahead.
	lastRun = time.Date(2025, 1, 1, 3, 30, 0, 0, time.UTC)
	next, err = scheduler.ComputeNextRun(s, lastRun, lastRun)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC), next)
}

func TestComputeNextRunEveryNDays(t *testing.T) {
	s := intervalSchedule(5, "07:00")

	lastRun := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)
	next, err := scheduler.ComputeNextRun(s, lastRun, lastRun)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC), next)
}

func TestComputeNextRunNeverInThePast(t *testing.T) {
	s := intervalSchedule(5, "07:00")

	// The service slept through three intervals; the schedule realigns
	// forward instead of replaying them.
	lastRun := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)
	now := time.Date(2025, 1, 18, 12, 0, 0, 0, time.UTC)
	next, err := scheduler.ComputeNextRun(s, lastRun, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 21, 7, 0, 0, 0, time.UTC), next)
	assert.False(t, next.Before(now))
}

func TestComputeNextRunRejectsNonPositiveInterval(t *testing.T) {
	s := intervalSchedule(0, "07:00")
	_, err := scheduler.ComputeNextRun(s, time.Now(), time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.CodeScheduleValidation, domain.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.ScheduleDefinition)
		wantCode domain.ErrorCode
	}{
		{
			name:   "valid daily",
			mutate: func(*domain.ScheduleDefinition) {},
		},
		{
			name: "valid interval",
			mutate: func(s *domain.ScheduleDefinition) {
				s.Periodicity = domain.PeriodicityEveryNDays
				s.IntervalDays = intPtr(3)
			},
		},
		{
			name:     "interval without days",
			mutate:   func(s *domain.ScheduleDefinition) { s.Periodicity = domain.PeriodicityEveryNDays },
			wantCode: domain.CodeScheduleValidation,
		},
		{
			name: "negative interval",
			mutate: func(s *domain.ScheduleDefinition) {
				s.Periodicity = domain.PeriodicityEveryNDays
				s.IntervalDays = intPtr(-2)
			},
			wantCode: domain.CodeScheduleValidation,
		},
		{
			name:     "bad time of day",
			mutate:   func(s *domain.ScheduleDefinition) { s.TimeOfDay = "25:99" },
			wantCode: domain.CodeScheduleValidation,
		},
		{
			name:     "unknown kind",
			mutate:   func(s *domain.ScheduleDefinition) { s.Kind = "inexistente" },
			wantCode: domain.CodeScheduleValidation,
		},
		{
			name:     "no credentials",
			mutate:   func(s *domain.ScheduleDefinition) { s.CredentialIDs = nil },
			wantCode: domain.CodeScheduleValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := dailySchedule("06:30")
			tt.mutate(s)

			err := scheduler.Validate(s)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domain.CodeOf(err))
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	hour, minute, err := scheduler.ParseTimeOfDay("23:45")
	require.NoError(t, err)
	assert.Equal(t, 23, hour)
	assert.Equal(t, 45, minute)

	for _, bad := range []string{"", "7", "7:5:3", "24:00", "12:60", "ab:cd"} {
		_, _, err := scheduler.ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
