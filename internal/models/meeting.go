package models

import "time"

// MeetingStatus tracks the lifecycle of a meeting request.
type MeetingStatus string

const (
	MeetingStatusDraft     MeetingStatus = "draft"
	MeetingStatusActive    MeetingStatus = "active"
	MeetingStatusLocked    MeetingStatus = "locked"
	MeetingStatusCancelled MeetingStatus = "cancelled"
)

// Meeting is a scheduling request created by an organiser.
type Meeting struct {
	ID                   string        `db:"id" json:"id"`
	Token                string        `db:"token" json:"-"`
	Title                string        `db:"title" json:"title"`
	Description          string        `db:"description" json:"description"`
	Status               MeetingStatus `db:"status" json:"status"`
	DurationMinutes      int           `db:"duration_minutes" json:"duration_minutes"`
	StepSizeMinutes      int           `db:"step_size_minutes" json:"step_size_minutes"`
	Timezone             string        `db:"timezone" json:"timezone"`
	DateRangeStart       time.Time     `db:"date_range_start" json:"date_range_start"`
	DateRangeEnd         time.Time     `db:"date_range_end" json:"date_range_end"`
	WorkHoursStart       TimeOfDay     `db:"work_hours_start" json:"work_hours_start"`
	WorkHoursEnd         TimeOfDay     `db:"work_hours_end" json:"work_hours_end"`
	WorkDaysOnly         bool          `db:"work_days_only" json:"work_days_only"`
	HideParticipantNames bool          `db:"hide_participant_names" json:"hide_participant_names"`
	ResponseDeadline     *time.Time    `db:"response_deadline" json:"response_deadline,omitempty"`
	CreatedByEmail       *string       `db:"created_by_email" json:"created_by_email,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the meeting still accepts responses at now.
func (m *Meeting) IsActive(now time.Time) bool {
	if m.Status != MeetingStatusActive {
		return false
	}
	if m.ResponseDeadline != nil && now.After(*m.ResponseDeadline) {
		return false
	}
	return true
}

// Config projects the slot grid parameters of the meeting.
func (m *Meeting) Config() MeetingConfig {
	return MeetingConfig{
		DurationMinutes: m.DurationMinutes,
		StepSizeMinutes: m.StepSizeMinutes,
		DateRangeStart:  m.DateRangeStart,
		DateRangeEnd:    m.DateRangeEnd,
		WorkHoursStart:  m.WorkHoursStart,
		WorkHoursEnd:    m.WorkHoursEnd,
		WorkDaysOnly:    m.WorkDaysOnly,
		Timezone:        m.Timezone,
	}
}

// MeetingConfig drives slot grid generation. Dates are calendar dates; only their
// year, month and day are read.
type MeetingConfig struct {
	DurationMinutes int
	StepSizeMinutes int
	DateRangeStart  time.Time
	DateRangeEnd    time.Time
	WorkHoursStart  TimeOfDay
	WorkHoursEnd    TimeOfDay
	WorkDaysOnly    bool
	Timezone        string
}

// WindowMinutes is the length of the daily work-hours window. A window whose end is not
// after its start crosses midnight.
func (c MeetingConfig) WindowMinutes() int {
	if c.WorkHoursEnd > c.WorkHoursStart {
		return int(c.WorkHoursEnd - c.WorkHoursStart)
	}
	return int(c.WorkHoursEnd-c.WorkHoursStart) + 24*60
}

// MeetingFilter narrows meeting listings.
type MeetingFilter struct {
	Status         MeetingStatus
	CreatedByEmail string
	Page           int
	PageSize       int
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
