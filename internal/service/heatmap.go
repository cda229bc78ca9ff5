package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

// HeatmapCell describes one slot of the heatmap grid.
type HeatmapCell struct {
	Level      int       `json:"level"`
	Available  int       `json:"available"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
}

// Heatmap buckets slots by local date and start time.
type Heatmap struct {
	Dates     []string                          `json:"dates"`
	TimeSlots []string                          `json:"time_slots"`
	Cells     map[string]map[string]HeatmapCell `json:"heatmap"`
	Timezone  string                            `json:"timezone"`
}

// DisplayPercentage rounds a percentage to one decimal place for presentation.
func DisplayPercentage(pct float64) float64 {
	return math.Round(pct*10) / 10
}

// BuildHeatmap arranges slots in loc. When slots is empty the meeting's grid is laid out
// with zeroed cells so the caller still gets the full shape.
func BuildHeatmap(meeting *models.Meeting, slots []models.SuggestedSlot, loc *time.Location) (*Heatmap, error) {
	hm := &Heatmap{Cells: map[string]map[string]HeatmapCell{}, Timezone: loc.String()}
	dates := map[string]struct{}{}
	times := map[string]struct{}{}

	put := func(start time.Time, cell HeatmapCell) {
		local := start.In(loc)
		date, clock := local.Format(dateLayout), local.Format("15:04")
		dates[date] = struct{}{}
		times[clock] = struct{}{}
		if hm.Cells[date] == nil {
			hm.Cells[date] = map[string]HeatmapCell{}
		}
		hm.Cells[date][clock] = cell
	}

	if len(slots) == 0 {
		grid, err := GenerateSlots(meeting.Config())
		if err != nil {
			return nil, err
		}
		for _, r := range grid {
			put(r.Start, HeatmapCell{StartUTC: r.Start.UTC(), EndUTC: r.End.UTC()})
		}
	} else {
		for i := range slots {
			slot := &slots[i]
			put(slot.StartTime, HeatmapCell{
				Level:      slot.HeatmapLevel(),
				Available:  slot.AvailableCount,
				Total:      slot.TotalResponded,
				Percentage: DisplayPercentage(slot.AvailabilityPercentage()),
				StartUTC:   slot.StartTime.UTC(),
				EndUTC:     slot.EndTime.UTC(),
			})
		}
	}

	hm.Dates = sortedKeys(dates)
	hm.TimeSlots = sortedKeys(times)
	return hm, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Heatmap renders stored suggestions of the meeting in timezone, defaulting to the meeting's zone.
func (s *SuggestionService) Heatmap(ctx context.Context, meetingID, timezone string) (*Heatmap, error) {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if timezone == "" {
		timezone = meeting.Timezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone "+timezone)
	}
	slots, err := s.cachedSlots(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return BuildHeatmap(meeting, slots, loc)
}
