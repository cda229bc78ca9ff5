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

type participantService interface {
	Invite(ctx context.Context, meetingID string, req dto.InviteParticipantRequest) (*dto.ParticipantResponse, error)
	Join(ctx context.Context, meetingID string, req dto.JoinMeetingRequest) (*dto.ParticipantResponse, error)
	List(ctx context.Context, meetingID string) ([]models.Participant, error)
	Get(ctx context.Context, meetingID, participantID string) (*models.Participant, error)
	SubmitAvailability(ctx context.Context, meetingID, participantID string, req dto.SubmitAvailabilityRequest) (*models.Participant, error)
	Remove(ctx context.Context, meetingID, participantID string) error
}

// ParticipantHandler exposes participant and availability endpoints.
type ParticipantHandler struct {
	service participantService
}

// NewParticipantHandler builds a new handler.
func NewParticipantHandler(service participantService) *ParticipantHandler {
	return &ParticipantHandler{service: service}
}

// Invite godoc
// @Summary Invite a participant
// @Description Returns the participant with a personal respond link. Participants with an email receive it by notification.
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.InviteParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Router /meetings/{id}/participants [post]
func (h *ParticipantHandler) Invite(c *gin.Context) {
	var req dto.InviteParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid participant payload"))
		return
	}
	participant, err := h.service.Invite(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// Join godoc
// @Summary Join a meeting through its share link
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.JoinMeetingRequest true "Join payload"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /meetings/{id}/join [post]
func (h *ParticipantHandler) Join(c *gin.Context) {
	var req dto.JoinMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	participant, err := h.service.Join(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// List godoc
// @Summary List participants with their busy intervals
// @Tags Participants
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	participants, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participants, nil)
}

// Get godoc
// @Summary Get a participant's own record
// @Tags Participants
// @Produce json
// @Param id path string true "Meeting ID"
// @Param participantId path string true "Participant ID"
// @Param X-Respond-Token header string true "Respond token"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/participants/{participantId} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	participant, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("participantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// SubmitAvailability godoc
// @Summary Replace a participant's busy intervals
// @Description Timestamps without an offset are read in the participant's timezone. Suggestions are rebuilt afterwards.
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param participantId path string true "Participant ID"
// @Param X-Respond-Token header string true "Respond token"
// @Param payload body dto.SubmitAvailabilityRequest true "Busy intervals"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /meetings/{id}/participants/{participantId}/availability [put]
func (h *ParticipantHandler) SubmitAvailability(c *gin.Context) {
	var req dto.SubmitAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	participant, err := h.service.SubmitAvailability(c.Request.Context(), c.Param("id"), c.Param("participantId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Remove godoc
// @Summary Remove a participant
// @Tags Participants
// @Param id path string true "Meeting ID"
// @Param participantId path string true "Participant ID"
// @Success 204
// @Router /meetings/{id}/participants/{participantId} [delete]
func (h *ParticipantHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), c.Param("participantId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
