package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
	"github.com/timeweave/meeting-scheduler-api/pkg/response"
)

type meetingService interface {
	Create(ctx context.Context, req dto.CreateMeetingRequest) (*dto.MeetingResponse, error)
	Get(ctx context.Context, id string) (*dto.MeetingResponse, error)
	List(ctx context.Context, query dto.MeetingQuery) ([]dto.MeetingResponse, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateMeetingRequest) (*dto.MeetingResponse, error)
	ChangeStatus(ctx context.Context, id string, req dto.ChangeMeetingStatusRequest) (*dto.MeetingResponse, error)
	Delete(ctx context.Context, id string) error
}

// MeetingHandler exposes meeting request endpoints.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler builds a new handler.
func NewMeetingHandler(service meetingService) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// Create godoc
// @Summary Create a meeting request
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body dto.CreateMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req dto.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}
	meeting, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// List godoc
// @Summary List meeting requests
// @Tags Meetings
// @Produce json
// @Param status query string false "draft, active, locked or cancelled"
// @Param created_by query string false "Organiser email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	var query dto.MeetingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a meeting request
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// Update godoc
// @Summary Update a meeting request
// @Description Schedule changes rebuild the stored suggestions.
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.UpdateMeetingRequest true "Meeting payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id} [put]
func (h *MeetingHandler) Update(c *gin.Context) {
	var req dto.UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}
	meeting, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// ChangeStatus godoc
// @Summary Publish or cancel a meeting request
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.ChangeMeetingStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/status [patch]
func (h *MeetingHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeMeetingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	meeting, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// Delete godoc
// @Summary Delete a meeting request
// @Tags Meetings
// @Param id path string true "Meeting ID"
// @Success 204
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
