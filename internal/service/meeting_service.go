package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

const shareTokenLength = 32

type meetingRepository interface {
	Create(ctx context.Context, m *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, int, error)
	Update(ctx context.Context, m *models.Meeting) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MeetingStatus) error
	Delete(ctx context.Context, id string) error
}

type participantInviter interface {
	Invite(ctx context.Context, meetingID string, req dto.InviteParticipantRequest) (*dto.ParticipantResponse, error)
	List(ctx context.Context, meetingID string) ([]models.Participant, error)
}

type suggestionRegenerator interface {
	GenerateSuggestedSlots(ctx context.Context, meetingID string, force bool) ([]models.SuggestedSlot, error)
	InvalidateMeeting(ctx context.Context, meetingID string)
}

// MeetingDefaults fills fields the organiser left empty.
type MeetingDefaults struct {
	Timezone       string
	PublicBaseURL  string
	StepMinutes    int
	WorkHoursStart models.TimeOfDay
	WorkHoursEnd   models.TimeOfDay
}

// MeetingService manages meeting requests.
type MeetingService struct {
	repo         meetingRepository
	participants participantInviter
	suggestions  suggestionRegenerator
	validator    *validator.Validate
	logger       *zap.Logger
	defaults     MeetingDefaults
	now          func() time.Time
}

// NewMeetingService wires meeting dependencies.
func NewMeetingService(repo meetingRepository, participants participantInviter, suggestions suggestionRegenerator, validate *validator.Validate, logger *zap.Logger, defaults MeetingDefaults) *MeetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Timezone == "" {
		defaults.Timezone = "Asia/Ho_Chi_Minh"
	}
	if defaults.StepMinutes <= 0 {
		defaults.StepMinutes = 30
	}
	if defaults.WorkHoursStart == 0 && defaults.WorkHoursEnd == 0 {
		defaults.WorkHoursStart = models.NewTimeOfDay(9, 0)
		defaults.WorkHoursEnd = models.NewTimeOfDay(18, 0)
	}
	return &MeetingService{
		repo:         repo,
		participants: participants,
		suggestions:  suggestions,
		validator:    validate,
		logger:       logger,
		defaults:     defaults,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the request, stores the meeting and invites any listed participants.
func (s *MeetingService) Create(ctx context.Context, req dto.CreateMeetingRequest) (*dto.MeetingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	meeting := &models.Meeting{
		Title:                strings.TrimSpace(req.Title),
		Description:          strings.TrimSpace(req.Description),
		HideParticipantNames: req.HideParticipantNames,
		Status:               models.MeetingStatusActive,
	}
	if req.Draft {
		meeting.Status = models.MeetingStatusDraft
	}
	if req.CreatedByEmail != "" {
		email := strings.ToLower(strings.TrimSpace(req.CreatedByEmail))
		meeting.CreatedByEmail = &email
	}
	if err := s.applySchedule(meeting, scheduleFields{
		duration: req.DurationMinutes, step: req.StepSizeMinutes,
		start: req.DateRangeStart, end: req.DateRangeEnd,
		workStart: req.WorkHoursStart, workEnd: req.WorkHoursEnd,
		workDaysOnly: req.WorkDaysOnly, timezone: req.Timezone, deadline: req.ResponseDeadline,
	}); err != nil {
		return nil, err
	}

	token, err := gonanoid.New(shareTokenLength)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate share token")
	}
	meeting.Token = token

	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, storageError(err, "failed to create meeting")
	}
	s.logger.Info("meeting created", zap.String("meeting_id", meeting.ID), zap.String("status", string(meeting.Status)))

	resp := s.toResponse(meeting, nil)
	for _, invite := range req.Participants {
		participant, err := s.participants.Invite(ctx, meeting.ID, invite)
		if err != nil {
			return nil, err
		}
		resp.Participants = append(resp.Participants, *participant)
	}
	resp.ParticipantCount = len(resp.Participants)
	return resp, nil
}

// Get returns the meeting with participant statistics.
func (s *MeetingService) Get(ctx context.Context, id string) (*dto.MeetingResponse, error) {
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	participants, err := s.participants.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(meeting, participants), nil
}

// List returns a page of meetings.
func (s *MeetingService) List(ctx context.Context, query dto.MeetingQuery) ([]dto.MeetingResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting query")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 20
	}
	meetings, total, err := s.repo.List(ctx, models.MeetingFilter{
		Status:         models.MeetingStatus(query.Status),
		CreatedByEmail: query.CreatedBy,
		Page:           query.Page,
		PageSize:       query.PageSize,
	})
	if err != nil {
		return nil, nil, storageError(err, "failed to list meetings")
	}
	items := make([]dto.MeetingResponse, 0, len(meetings))
	for i := range meetings {
		items = append(items, *s.toResponse(&meetings[i], nil))
	}
	return items, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Update replaces the editable fields. Schedule changes rebuild the stored suggestions.
func (s *MeetingService) Update(ctx context.Context, id string, req dto.UpdateMeetingRequest) (*dto.MeetingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if err := ensureMutable(meeting); err != nil {
		return nil, err
	}
	before := meeting.Config()

	meeting.Title = strings.TrimSpace(req.Title)
	meeting.Description = strings.TrimSpace(req.Description)
	meeting.HideParticipantNames = req.HideParticipantNames
	if err := s.applySchedule(meeting, scheduleFields{
		duration: req.DurationMinutes, step: req.StepSizeMinutes,
		start: req.DateRangeStart, end: req.DateRangeEnd,
		workStart: req.WorkHoursStart, workEnd: req.WorkHoursEnd,
		workDaysOnly: req.WorkDaysOnly, timezone: req.Timezone, deadline: req.ResponseDeadline,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, meeting); err != nil {
		return nil, storageError(err, "failed to update meeting")
	}

	if !sameConfig(before, meeting.Config()) {
		if _, err := s.suggestions.GenerateSuggestedSlots(ctx, id, true); err != nil {
			return nil, err
		}
	} else {
		s.suggestions.InvalidateMeeting(ctx, id)
	}
	return s.Get(ctx, id)
}

// ChangeStatus publishes a draft or cancels a meeting.
func (s *MeetingService) ChangeStatus(ctx context.Context, id string, req dto.ChangeMeetingStatusRequest) (*dto.MeetingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if err := ensureMutable(meeting); err != nil {
		return nil, err
	}
	if req.Status == models.MeetingStatusActive && meeting.Status != models.MeetingStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft meetings can be published")
	}
	if err := s.repo.UpdateStatus(ctx, nil, id, req.Status); err != nil {
		return nil, storageError(err, "failed to update meeting status")
	}
	s.logger.Info("meeting status changed", zap.String("meeting_id", id), zap.String("from", string(meeting.Status)), zap.String("to", string(req.Status)))
	return s.Get(ctx, id)
}

// Delete removes a meeting and everything attached to it.
func (s *MeetingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageError(err, "failed to delete meeting")
	}
	s.suggestions.InvalidateMeeting(ctx, id)
	s.logger.Info("meeting deleted", zap.String("meeting_id", id))
	return nil
}

// ShareURL renders the participant entry link of the meeting.
func (s *MeetingService) ShareURL(m *models.Meeting) string {
	return fmt.Sprintf("%s/r/%s?t=%s", s.defaults.PublicBaseURL, m.ID, m.Token)
}

func (s *MeetingService) toResponse(m *models.Meeting, participants []models.Participant) *dto.MeetingResponse {
	resp := &dto.MeetingResponse{
		Meeting:          *m,
		ShareURL:         s.ShareURL(m),
		ParticipantCount: len(participants),
		IsActive:         m.IsActive(s.now()),
	}
	for i := range participants {
		if participants[i].Responded {
			resp.RespondedCount++
		}
		resp.Participants = append(resp.Participants, dto.ParticipantResponse{Participant: participants[i]})
	}
	resp.ResponseRate = ResponseRate(resp.RespondedCount, resp.ParticipantCount)
	return resp
}

// ResponseRate is the rounded share of participants who responded.
func ResponseRate(responded, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(responded)/float64(total)*100 + 0.5)
}

type scheduleFields struct {
	duration, step int
	start, end     string
	workStart      string
	workEnd        string
	workDaysOnly   *bool
	timezone       string
	deadline       *time.Time
}

func (s *MeetingService) applySchedule(m *models.Meeting, f scheduleFields) error {
	start, err := time.Parse(dateLayout, f.start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date_range_start must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, f.end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date_range_end must be YYYY-MM-DD")
	}
	m.DateRangeStart, m.DateRangeEnd = start, end
	m.DurationMinutes = f.duration
	m.StepSizeMinutes = f.step
	if m.StepSizeMinutes == 0 {
		m.StepSizeMinutes = s.defaults.StepMinutes
	}
	m.WorkHoursStart, m.WorkHoursEnd = s.defaults.WorkHoursStart, s.defaults.WorkHoursEnd
	if f.workStart != "" {
		if m.WorkHoursStart, err = models.ParseTimeOfDay(f.workStart); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "work_hours_start must be HH:MM")
		}
	}
	if f.workEnd != "" {
		if m.WorkHoursEnd, err = models.ParseTimeOfDay(f.workEnd); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "work_hours_end must be HH:MM")
		}
	}
	m.WorkDaysOnly = true
	if f.workDaysOnly != nil {
		m.WorkDaysOnly = *f.workDaysOnly
	}
	m.Timezone = f.timezone
	if m.Timezone == "" {
		m.Timezone = s.defaults.Timezone
	}
	m.ResponseDeadline = nil
	if f.deadline != nil {
		d := f.deadline.UTC()
		m.ResponseDeadline = &d
	}
	_, err = ValidateMeetingConfig(m.Config())
	return err
}

func ensureMutable(m *models.Meeting) error {
	switch m.Status {
	case models.MeetingStatusLocked:
		return appErrors.Clone(appErrors.ErrFinalized, "meeting time is already locked")
	case models.MeetingStatusCancelled:
		return appErrors.Clone(appErrors.ErrFinalized, "meeting is cancelled")
	}
	return nil
}

func sameConfig(a, b models.MeetingConfig) bool {
	return a.DurationMinutes == b.DurationMinutes &&
		a.StepSizeMinutes == b.StepSizeMinutes &&
		calendarDate(a.DateRangeStart).Equal(calendarDate(b.DateRangeStart)) &&
		calendarDate(a.DateRangeEnd).Equal(calendarDate(b.DateRangeEnd)) &&
		a.WorkHoursStart == b.WorkHoursStart &&
		a.WorkHoursEnd == b.WorkHoursEnd &&
		a.WorkDaysOnly == b.WorkDaysOnly &&
		a.Timezone == b.Timezone
}
