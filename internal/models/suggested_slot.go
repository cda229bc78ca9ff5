package models

import (
	"time"

	"github.com/lib/pq"
)

// SuggestedSlot is the persisted availability aggregate for one grid slot.
// (MeetingID, StartTime, EndTime) is unique.
type SuggestedSlot struct {
	ID                      string         `db:"id" json:"id"`
	MeetingID               string         `db:"meeting_id" json:"meeting_id"`
	StartTime               time.Time      `db:"start_time" json:"start_time"`
	EndTime                 time.Time      `db:"end_time" json:"end_time"`
	AvailableCount          int            `db:"available_count" json:"available_count"`
	TotalResponded          int            `db:"total_responded" json:"total_responded"`
	AvailableParticipantIDs pq.StringArray `db:"available_participant_ids" json:"available_participant_ids"`
	IsLocked                bool           `db:"is_locked" json:"is_locked"`
	CalculatedAt            time.Time      `db:"calculated_at" json:"calculated_at"`
}

// AvailabilityPercentage is AvailableCount/TotalResponded*100, unrounded; 0 when nobody responded.
func (s *SuggestedSlot) AvailabilityPercentage() float64 {
	if s.TotalResponded == 0 {
		return 0
	}
	return float64(s.AvailableCount) / float64(s.TotalResponded) * 100
}

// HeatmapLevel buckets the availability percentage into 0..5.
func (s *SuggestedSlot) HeatmapLevel() int {
	pct := s.AvailabilityPercentage()
	switch {
	case pct >= 80:
		return 5
	case pct >= 60:
		return 4
	case pct >= 40:
		return 3
	case pct >= 20:
		return 2
	case pct > 0:
		return 1
	default:
		return 0
	}
}

// TimeRange is a half-open [Start, End) instant pair.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
