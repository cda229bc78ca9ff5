package service

import (
	"time"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

// SlotAvailability aggregates responded participants for one candidate slot.
type SlotAvailability struct {
	AvailableCount          int
	TotalResponded          int
	AvailableParticipantIDs []string
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd)
// intersect. Intervals that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// IsParticipantAvailable reports whether none of the participant's busy intervals overlap
// the slot. The responded flag is not consulted.
func IsParticipantAvailable(p *models.Participant, slotStart, slotEnd time.Time) bool {
	for _, busy := range p.BusyIntervals {
		if Overlaps(busy.StartTime, busy.EndTime, slotStart, slotEnd) {
			return false
		}
	}
	return true
}

// CalculateSlotAvailability counts responded participants free for the slot. participants
// must be in registration order; available ids keep that order.
func CalculateSlotAvailability(participants []models.Participant, slotStart, slotEnd time.Time) SlotAvailability {
	result := SlotAvailability{AvailableParticipantIDs: []string{}}
	for i := range participants {
		p := &participants[i]
		if !p.Responded {
			continue
		}
		result.TotalResponded++
		if IsParticipantAvailable(p, slotStart, slotEnd) {
			result.AvailableParticipantIDs = append(result.AvailableParticipantIDs, p.ID)
		}
	}
	result.AvailableCount = len(result.AvailableParticipantIDs)
	return result
}
