package models

import "time"

// Participant is an invitee of a meeting. Responded is set only when availability is submitted.
type Participant struct {
	ID            string         `db:"id" json:"id"`
	MeetingID     string         `db:"meeting_id" json:"meeting_id"`
	Name          string         `db:"name" json:"name"`
	Email         *string        `db:"email" json:"email,omitempty"`
	Timezone      string         `db:"timezone" json:"timezone"`
	Responded     bool           `db:"responded" json:"responded"`
	RespondedAt   *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	BusyIntervals []BusyInterval `db:"-" json:"busy_intervals"`
}

// DisplayName falls back to the email or a generic label.
func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	return "Participant " + p.ID
}

// BusyInterval is a half-open UTC range [StartTime, EndTime) during which a participant is unavailable.
type BusyInterval struct {
	ID            string    `db:"id" json:"id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	StartTime     time.Time `db:"start_time" json:"start_time"`
	EndTime       time.Time `db:"end_time" json:"end_time"`
	Description   string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
