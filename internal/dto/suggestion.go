package dto

import "github.com/timeweave/meeting-scheduler-api/internal/models"

// GenerateSuggestionsRequest triggers regeneration.
type GenerateSuggestionsRequest struct {
	Force bool `json:"force"`
}

// TopSuggestionsQuery ranks stored suggestions. A negative limit yields an empty list.
type TopSuggestionsQuery struct {
	Limit  *int     `form:"limit" validate:"omitempty,max=500"`
	MinPct *float64 `form:"min_pct" validate:"omitempty,min=0,max=100"`
}

// HeatmapQuery picks the display timezone.
type HeatmapQuery struct {
	Timezone string `form:"tz" validate:"omitempty,timezone"`
}

// LockSlotRequest finalises the meeting on one suggestion.
type LockSlotRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// ExportQuery renders ranked suggestions as a document.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
	TopSuggestionsQuery
}

// SuggestionResponse is a suggested slot with derived presentation fields.
type SuggestionResponse struct {
	models.SuggestedSlot
	AvailabilityPercentage    float64  `json:"availability_percentage"`
	HeatmapLevel              int      `json:"heatmap_level"`
	AvailableParticipantNames []string `json:"available_participant_names,omitempty"`
}
