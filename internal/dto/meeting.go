package dto

import (
	"time"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

// CreateMeetingRequest opens a new meeting request.
type CreateMeetingRequest struct {
	Title                string                     `json:"title" validate:"required,max=200"`
	Description          string                     `json:"description" validate:"max=2000"`
	DurationMinutes      int                        `json:"duration_minutes" validate:"required,min=1,max=480"`
	StepSizeMinutes      int                        `json:"step_size_minutes" validate:"omitempty,min=5,max=240"`
	DateRangeStart       string                     `json:"date_range_start" validate:"required,datetime=2006-01-02"`
	DateRangeEnd         string                     `json:"date_range_end" validate:"required,datetime=2006-01-02"`
	WorkHoursStart       string                     `json:"work_hours_start" validate:"omitempty,datetime=15:04"`
	WorkHoursEnd         string                     `json:"work_hours_end" validate:"omitempty,datetime=15:04"`
	WorkDaysOnly         *bool                      `json:"work_days_only"`
	Timezone             string                     `json:"timezone" validate:"omitempty,timezone"`
	HideParticipantNames bool                       `json:"hide_participant_names"`
	ResponseDeadline     *time.Time                 `json:"response_deadline"`
	CreatedByEmail       string                     `json:"created_by_email" validate:"omitempty,email"`
	Draft                bool                       `json:"draft"`
	Participants         []InviteParticipantRequest `json:"participants" validate:"omitempty,max=100,dive"`
}

// UpdateMeetingRequest replaces the editable fields of a meeting.
type UpdateMeetingRequest struct {
	Title                string     `json:"title" validate:"required,max=200"`
	Description          string     `json:"description" validate:"max=2000"`
	DurationMinutes      int        `json:"duration_minutes" validate:"required,min=1,max=480"`
	StepSizeMinutes      int        `json:"step_size_minutes" validate:"omitempty,min=5,max=240"`
	DateRangeStart       string     `json:"date_range_start" validate:"required,datetime=2006-01-02"`
	DateRangeEnd         string     `json:"date_range_end" validate:"required,datetime=2006-01-02"`
	WorkHoursStart       string     `json:"work_hours_start" validate:"omitempty,datetime=15:04"`
	WorkHoursEnd         string     `json:"work_hours_end" validate:"omitempty,datetime=15:04"`
	WorkDaysOnly         *bool      `json:"work_days_only"`
	Timezone             string     `json:"timezone" validate:"omitempty,timezone"`
	HideParticipantNames bool       `json:"hide_participant_names"`
	ResponseDeadline     *time.Time `json:"response_deadline"`
}

// ChangeMeetingStatusRequest moves a meeting through its lifecycle.
type ChangeMeetingStatusRequest struct {
	Status models.MeetingStatus `json:"status" validate:"required,oneof=active cancelled"`
}

// MeetingQuery filters meeting listings.
type MeetingQuery struct {
	Status    string `form:"status" validate:"omitempty,oneof=draft active locked cancelled"`
	CreatedBy string `form:"created_by" validate:"omitempty,email"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// MeetingResponse decorates a meeting with share and response details.
type MeetingResponse struct {
	models.Meeting
	ShareURL         string                `json:"share_url"`
	ParticipantCount int                   `json:"participant_count"`
	RespondedCount   int                   `json:"responded_count"`
	ResponseRate     int                   `json:"response_rate"`
	IsActive         bool                  `json:"is_active"`
	Participants     []ParticipantResponse `json:"participants,omitempty"`
}
