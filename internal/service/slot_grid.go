package service

import (
	"fmt"
	"time"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

const (
	// MaxMeetingDurationMinutes bounds a single meeting.
	MaxMeetingDurationMinutes = 480
	// MaxDateRangeDays bounds the grid so a single request cannot enumerate years of slots.
	MaxDateRangeDays = 366
)

func configError(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrInvalidMeetingConfig, fmt.Sprintf(format, args...))
}

// ValidateMeetingConfig checks cfg and resolves its timezone.
func ValidateMeetingConfig(cfg models.MeetingConfig) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		return nil, configError("unknown timezone %q", cfg.Timezone)
	}
	startDate, endDate := calendarDate(cfg.DateRangeStart), calendarDate(cfg.DateRangeEnd)
	if startDate.After(endDate) {
		return nil, configError("date range start %s is after end %s", startDate.Format(dateLayout), endDate.Format(dateLayout))
	}
	if days := int(endDate.Sub(startDate).Hours()/24) + 1; days > MaxDateRangeDays {
		return nil, configError("date range spans %d days, at most %d allowed", days, MaxDateRangeDays)
	}
	if cfg.DurationMinutes <= 0 || cfg.DurationMinutes > MaxMeetingDurationMinutes {
		return nil, configError("duration must be between 1 and %d minutes", MaxMeetingDurationMinutes)
	}
	if cfg.StepSizeMinutes <= 0 {
		return nil, configError("step size must be positive")
	}
	if window := cfg.WindowMinutes(); cfg.DurationMinutes > window {
		return nil, configError("duration of %d minutes exceeds the %d minute work-hours window", cfg.DurationMinutes, window)
	}
	return loc, nil
}

// GenerateSlots enumerates candidate slots date-major then time-minor, as UTC instants.
// Work hours are interpreted in cfg.Timezone; a window whose end is not after its start
// closes on the following calendar day.
func GenerateSlots(cfg models.MeetingConfig) ([]models.TimeRange, error) {
	loc, err := ValidateMeetingConfig(cfg)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(cfg.DurationMinutes) * time.Minute
	step := time.Duration(cfg.StepSizeMinutes) * time.Minute
	crossesMidnight := cfg.WorkHoursEnd <= cfg.WorkHoursStart
	last := calendarDate(cfg.DateRangeEnd)

	var slots []models.TimeRange
	for day := calendarDate(cfg.DateRangeStart); !day.After(last); day = day.AddDate(0, 0, 1) {
		if cfg.WorkDaysOnly && isWeekend(day) {
			continue
		}
		dayStart := cfg.WorkHoursStart.On(day, loc)
		endDay := day
		if crossesMidnight {
			endDay = day.AddDate(0, 0, 1)
		}
		dayEnd := cfg.WorkHoursEnd.On(endDay, loc)

		for start := dayStart; !start.Add(duration).After(dayEnd); start = start.Add(step) {
			slots = append(slots, models.TimeRange{Start: start.UTC(), End: start.Add(duration).UTC()})
		}
	}
	return slots, nil
}

const dateLayout = "2006-01-02"

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
