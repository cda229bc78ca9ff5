package service

import (
	"context"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

// Present decorates slots with percentages, heat levels and, unless the meeting hides them,
// the names of available participants.
func (s *SuggestionService) Present(ctx context.Context, meeting *models.Meeting, slots []models.SuggestedSlot) ([]dto.SuggestionResponse, error) {
	var names map[string]string
	if !meeting.HideParticipantNames {
		participants, err := s.participants.ListByMeeting(ctx, meeting.ID)
		if err != nil {
			return nil, storageError(err, "failed to load participants")
		}
		names = make(map[string]string, len(participants))
		for i := range participants {
			names[participants[i].ID] = participants[i].DisplayName()
		}
	}
	return PresentSuggestions(slots, names), nil
}

// PresentSuggestions builds response rows. A nil names map omits participant names.
func PresentSuggestions(slots []models.SuggestedSlot, names map[string]string) []dto.SuggestionResponse {
	out := make([]dto.SuggestionResponse, 0, len(slots))
	for i := range slots {
		row := dto.SuggestionResponse{
			SuggestedSlot:          slots[i],
			AvailabilityPercentage: DisplayPercentage(slots[i].AvailabilityPercentage()),
			HeatmapLevel:           slots[i].HeatmapLevel(),
		}
		if names != nil {
			row.AvailableParticipantNames = make([]string, 0, len(slots[i].AvailableParticipantIDs))
			for _, id := range slots[i].AvailableParticipantIDs {
				if name, ok := names[id]; ok {
					row.AvailableParticipantNames = append(row.AvailableParticipantNames, name)
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// MeetingFor loads the meeting owning the suggestions.
func (s *SuggestionService) MeetingFor(ctx context.Context, meetingID string) (*models.Meeting, error) {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	return meeting, nil
}
