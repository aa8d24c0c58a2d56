// Package scheduler turns schedule definitions (agendamentos) into
// capture invocations: it computes due times, dispatches due schedules
// and guards against concurrent runs of the same capture scope.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

const hoursPerDay = 24

// ParseTimeOfDay parses the "HH:MM" wall-clock field of a schedule.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour >= hoursPerDay {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute >= 60 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hour, minute, nil
}

// Validate rejects malformed schedule definitions at write time.
func Validate(s *domain.ScheduleDefinition) error {
	if !s.Kind.Valid() {
		return domain.NewCaptureError(domain.CodeScheduleValidation,
			fmt.Sprintf("invalid capture kind %q", s.Kind), nil)
	}
	if len(s.CredentialIDs) == 0 {
		return domain.NewCaptureError(domain.CodeScheduleValidation,
			"at least one credential is required", nil)
	}
	if _, _, err := ParseTimeOfDay(s.TimeOfDay); err != nil {
		return domain.NewCaptureError(domain.CodeScheduleValidation, err.Error(), nil)
	}

	switch s.Periodicity {
	case domain.PeriodicityDaily:
	case domain.PeriodicityEveryNDays:
		if s.IntervalDays == nil || *s.IntervalDays <= 0 {
			return domain.NewCaptureError(domain.CodeScheduleValidation,
				"interval_days must be positive for interval schedules", nil)
		}
	default:
		return domain.NewCaptureError(domain.CodeScheduleValidation,
			fmt.Sprintf("invalid periodicity %q", s.Periodicity), nil)
	}

	return nil
}

// ComputeNextRun derives the next execution time from the schedule and
// the run it just completed. Daily schedules fire at the next occurrence
// of the configured time of day strictly after lastRun; interval
// schedules fire IntervalDays days after lastRun at the configured time
// of day, but never in the past relative to now.
func ComputeNextRun(s *domain.ScheduleDefinition, lastRun, now time.Time) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	atTimeOfDay := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
	}

	switch s.Periodicity {
	case domain.PeriodicityDaily:
		next := atTimeOfDay(lastRun)
		if !next.After(lastRun) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case domain.PeriodicityEveryNDays:
		if s.IntervalDays == nil || *s.IntervalDays <= 0 {
			return time.Time{}, domain.NewCaptureError(domain.CodeScheduleValidation,
				"interval_days must be positive for interval schedules", nil)
		}
		next := atTimeOfDay(lastRun.AddDate(0, 0, *s.IntervalDays))
		// A schedule that slept past several intervals fires once, then
		// realigns forward instead of replaying missed invocations.
		for next.Before(now) {
			next = next.AddDate(0, 0, *s.IntervalDays)
		}
		return next, nil

	default:
		return time.Time{}, domain.NewCaptureError(domain.CodeScheduleValidation,
			fmt.Sprintf("invalid periodicity %q", s.Periodicity), nil)
	}
}
