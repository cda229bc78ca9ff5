package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	"github.com/timeweave/meeting-scheduler-api/internal/service"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
	"github.com/timeweave/meeting-scheduler-api/pkg/response"
)

type suggestionService interface {
	MeetingFor(ctx context.Context, meetingID string) (*models.Meeting, error)
	GenerateSuggestedSlots(ctx context.Context, meetingID string, force bool) ([]models.SuggestedSlot, error)
	GetTopSuggestions(ctx context.Context, meetingID string, limit int, minPct float64) ([]models.SuggestedSlot, error)
	ListSuggestions(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error)
	Present(ctx context.Context, meeting *models.Meeting, slots []models.SuggestedSlot) ([]dto.SuggestionResponse, error)
	Heatmap(ctx context.Context, meetingID, timezone string) (*service.Heatmap, error)
	LockSlot(ctx context.Context, meetingID, slotID string) (*models.SuggestedSlot, error)
	Defaults() (int, float64)
}

type suggestionExporter interface {
	Export(ctx context.Context, meetingID string, query dto.ExportQuery) (*service.ExportFile, error)
}

// SuggestionHandler exposes suggestion generation, ranking, heatmap, locking and export.
type SuggestionHandler struct {
	service  suggestionService
	exporter suggestionExporter
}

// NewSuggestionHandler builds a new handler.
func NewSuggestionHandler(service suggestionService, exporter suggestionExporter) *SuggestionHandler {
	return &SuggestionHandler{service: service, exporter: exporter}
}

// Generate godoc
// @Summary Recompute suggested slots
// @Description With force the meeting's suggestions are replaced atomically, otherwise each grid slot is upserted.
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.GenerateSuggestionsRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /meetings/{id}/suggestions/generate [post]
func (h *SuggestionHandler) Generate(c *gin.Context) {
	var req dto.GenerateSuggestionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
			return
		}
	}
	ctx := c.Request.Context()
	meetingID := c.Param("id")
	slots, err := h.service.GenerateSuggestedSlots(ctx, meetingID, req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, meetingID, slots, map[string]interface{}{"force": req.Force, "count": len(slots)})
}

// List godoc
// @Summary List every stored suggestion chronologically
// @Tags Suggestions
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	meetingID := c.Param("id")
	slots, err := h.service.ListSuggestions(c.Request.Context(), meetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, meetingID, slots, nil)
}

// Top godoc
// @Summary Rank suggestions
// @Description Slots at or above min_pct ordered by available count then start time.
// @Tags Suggestions
// @Produce json
// @Param id path string true "Meeting ID"
// @Param limit query int false "Maximum number of suggestions"
// @Param min_pct query number false "Minimum availability percentage"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/suggestions/top [get]
func (h *SuggestionHandler) Top(c *gin.Context) {
	var query dto.TopSuggestionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	limit, minPct := h.service.Defaults()
	if query.Limit != nil {
		limit = *query.Limit
	}
	if query.MinPct != nil {
		minPct = *query.MinPct
	}
	meetingID := c.Param("id")
	slots, err := h.service.GetTopSuggestions(c.Request.Context(), meetingID, limit, minPct)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, meetingID, slots, map[string]interface{}{"limit": limit, "min_pct": minPct})
}

func (h *SuggestionHandler) respond(c *gin.Context, meetingID string, slots []models.SuggestedSlot, meta map[string]interface{}) {
	ctx := c.Request.Context()
	meeting, err := h.service.MeetingFor(ctx, meetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.Present(ctx, meeting, slots)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, meta)
}

// Heatmap godoc
// @Summary Availability heatmap
// @Description Buckets suggestions by local date and start time in tz (defaults to the meeting timezone).
// @Tags Suggestions
// @Produce json
// @Param id path string true "Meeting ID"
// @Param tz query string false "IANA timezone"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/heatmap [get]
func (h *SuggestionHandler) Heatmap(c *gin.Context) {
	var query dto.HeatmapQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	heatmap, err := h.service.Heatmap(c.Request.Context(), c.Param("id"), query.Timezone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, heatmap, nil)
}

// Lock godoc
// @Summary Finalise the meeting time
// @Description Keeps only the chosen suggestion, locks the meeting and notifies participants.
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.LockSlotRequest true "Slot to lock"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/lock [post]
func (h *SuggestionHandler) Lock(c *gin.Context) {
	var req dto.LockSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SlotID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slot_id is required"))
		return
	}
	slot, err := h.service.LockSlot(c.Request.Context(), c.Param("id"), req.SlotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Export godoc
// @Summary Download ranked suggestions
// @Tags Suggestions
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Meeting ID"
// @Param format query string false "csv (default) or pdf"
// @Param limit query int false "Maximum number of suggestions"
// @Param min_pct query number false "Minimum availability percentage"
// @Success 200 {file} file
// @Router /meetings/{id}/suggestions/export [get]
func (h *SuggestionHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
