package dto

import (
	"time"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

// InviteParticipantRequest adds a participant on the organiser's behalf.
type InviteParticipantRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// JoinMeetingRequest self-registers through the share link.
type JoinMeetingRequest struct {
	Token    string `json:"token" validate:"required"`
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// BusyIntervalInput is one busy range. Values without an offset are read in the
// participant's timezone.
type BusyIntervalInput struct {
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	Description string `json:"description" validate:"max=200"`
}

// SubmitAvailabilityRequest replaces a participant's busy intervals.
type SubmitAvailabilityRequest struct {
	BusySlots []BusyIntervalInput `json:"busy_slots" validate:"max=500,dive"`
}

// ParticipantResponse carries the participant and, when freshly issued, the respond link.
type ParticipantResponse struct {
	models.Participant
	RespondURL     string     `json:"respond_url,omitempty"`
	RespondToken   string     `json:"respond_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}
