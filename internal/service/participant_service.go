package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	"github.com/timeweave/meeting-scheduler-api/pkg/database"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

type participantRepository interface {
	Upsert(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, meetingID, id string) (*models.Participant, error)
	ListByMeeting(ctx context.Context, meetingID string) ([]models.Participant, error)
	ReplaceBusyIntervals(ctx context.Context, exec sqlx.ExtContext, participantID string, intervals []models.BusyInterval) error
	MarkResponded(ctx context.Context, exec sqlx.ExtContext, participantID string, at time.Time) error
	Delete(ctx context.Context, meetingID, id string) error
}

type respondTokenIssuer interface {
	Issue(meetingID, participantID string) (string, time.Time, error)
}

type invitationNotifier interface {
	NotifyInvited(ctx context.Context, meeting *models.Meeting, participant *models.Participant, respondURL string)
}

type slotRegenerator interface {
	GenerateSuggestedSlots(ctx context.Context, meetingID string, force bool) ([]models.SuggestedSlot, error)
}

// ParticipantService registers participants and records their availability.
type ParticipantService struct {
	meetings     meetingReader
	participants participantRepository
	tx           txProvider
	tokens       respondTokenIssuer
	notifier     invitationNotifier
	regenerator  slotRegenerator
	validator    *validator.Validate
	logger       *zap.Logger
	baseURL      string
	now          func() time.Time
}

// NewParticipantService wires participant dependencies. notifier and regenerator may be nil.
func NewParticipantService(
	meetings meetingReader,
	participants participantRepository,
	tx txProvider,
	tokens respondTokenIssuer,
	notifier invitationNotifier,
	regenerator slotRegenerator,
	validate *validator.Validate,
	logger *zap.Logger,
	baseURL string,
) *ParticipantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantService{
		meetings:     meetings,
		participants: participants,
		tx:           tx,
		tokens:       tokens,
		notifier:     notifier,
		regenerator:  regenerator,
		validator:    validate,
		logger:       logger,
		baseURL:      strings.TrimRight(baseURL, "/"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Invite registers a participant on the organiser's behalf and sends the respond link when
// an email is known.
func (s *ParticipantService) Invite(ctx context.Context, meetingID string, req dto.InviteParticipantRequest) (*dto.ParticipantResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if err := ensureMutable(meeting); err != nil {
		return nil, err
	}
	resp, err := s.register(ctx, meeting, req.Name, req.Email, req.Timezone)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil && resp.Email != nil {
		s.notifier.NotifyInvited(ctx, meeting, &resp.Participant, resp.RespondURL)
	}
	return resp, nil
}

// Join self-registers a participant through the meeting share token.
func (s *ParticipantService) Join(ctx context.Context, meetingID string, req dto.JoinMeetingRequest) (*dto.ParticipantResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if subtle.ConstantTimeCompare([]byte(meeting.Token), []byte(req.Token)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid share token")
	}
	if !meeting.IsActive(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "meeting is not accepting responses")
	}
	return s.register(ctx, meeting, req.Name, req.Email, req.Timezone)
}

func (s *ParticipantService) register(ctx context.Context, meeting *models.Meeting, name, email, timezone string) (*dto.ParticipantResponse, error) {
	p := &models.Participant{
		MeetingID: meeting.ID,
		Name:      strings.TrimSpace(name),
		Timezone:  timezone,
	}
	if p.Timezone == "" {
		p.Timezone = meeting.Timezone
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		p.Email = &email
	}
	if err := s.participants.Upsert(ctx, p); err != nil {
		return nil, storageError(err, "failed to register participant")
	}

	token, expires, err := s.tokens.Issue(meeting.ID, p.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue respond token")
	}
	s.logger.Info("participant registered", zap.String("meeting_id", meeting.ID), zap.String("participant_id", p.ID))
	return &dto.ParticipantResponse{
		Participant:    *p,
		RespondURL:     s.RespondURL(meeting.ID, p.ID, token),
		RespondToken:   token,
		TokenExpiresAt: &expires,
	}, nil
}

// RespondURL renders the personal availability link of a participant.
func (s *ParticipantService) RespondURL(meetingID, participantID, token string) string {
	return fmt.Sprintf("%s/r/%s/p/%s?token=%s", s.baseURL, meetingID, participantID, url.QueryEscape(token))
}

// List returns the meeting's participants in registration order.
func (s *ParticipantService) List(ctx context.Context, meetingID string) ([]models.Participant, error) {
	participants, err := s.participants.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to list participants")
	}
	return participants, nil
}

// Get returns one participant with busy intervals.
func (s *ParticipantService) Get(ctx context.Context, meetingID, participantID string) (*models.Participant, error) {
	p, err := s.participants.FindByID(ctx, meetingID, participantID)
	if err != nil {
		return nil, storageError(err, "failed to load participant")
	}
	return p, nil
}

// SubmitAvailability replaces the participant's busy intervals, marks them responded and
// rebuilds the meeting's suggestions.
func (s *ParticipantService) SubmitAvailability(ctx context.Context, meetingID, participantID string, req dto.SubmitAvailabilityRequest) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if !meeting.IsActive(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "meeting is not accepting responses")
	}
	participant, err := s.participants.FindByID(ctx, meetingID, participantID)
	if err != nil {
		return nil, storageError(err, "failed to load participant")
	}

	zone := participant.Timezone
	if zone == "" {
		zone = meeting.Timezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participant timezone is invalid")
	}
	intervals, err := ParseBusyIntervals(req.BusySlots, loc)
	if err != nil {
		return nil, err
	}

	respondedAt := s.now()
	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.participants.ReplaceBusyIntervals(ctx, tx, participant.ID, intervals); err != nil {
			return err
		}
		return s.participants.MarkResponded(ctx, tx, participant.ID, respondedAt)
	})
	if err != nil {
		return nil, storageError(err, "failed to save availability")
	}
	participant.BusyIntervals = intervals
	participant.Responded = true
	participant.RespondedAt = &respondedAt
	s.logger.Info("availability submitted",
		zap.String("meeting_id", meetingID),
		zap.String("participant_id", participant.ID),
		zap.Int("busy_intervals", len(intervals)),
	)

	if err := s.regenerate(ctx, meetingID); err != nil {
		return nil, err
	}
	return participant, nil
}

// Remove deletes a participant and rebuilds the meeting's suggestions.
func (s *ParticipantService) Remove(ctx context.Context, meetingID, participantID string) error {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return storageError(err, "failed to load meeting")
	}
	if err := ensureMutable(meeting); err != nil {
		return err
	}
	if err := s.participants.Delete(ctx, meetingID, participantID); err != nil {
		return storageError(err, "failed to remove participant")
	}
	return s.regenerate(ctx, meetingID)
}

func (s *ParticipantService) regenerate(ctx context.Context, meetingID string) error {
	if s.regenerator == nil {
		return nil
	}
	_, err := s.regenerator.GenerateSuggestedSlots(ctx, meetingID, true)
	return err
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant reads an ISO-8601 timestamp. Values with an offset are absolute; naive values
// are interpreted in loc. The result is in UTC.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// ParseBusyIntervals converts submitted ranges into UTC busy intervals ordered by start.
// Any unparseable bound or a range whose end is not after its start rejects the whole payload.
func ParseBusyIntervals(inputs []dto.BusyIntervalInput, loc *time.Location) ([]models.BusyInterval, error) {
	intervals := make([]models.BusyInterval, 0, len(inputs))
	for i, in := range inputs {
		start, err := ParseInstant(in.Start, loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("busy_slots[%d].start is invalid", i))
		}
		end, err := ParseInstant(in.End, loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("busy_slots[%d].end is invalid", i))
		}
		if !start.Before(end) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("busy_slots[%d] must end after it starts", i))
		}
		intervals = append(intervals, models.BusyInterval{
			StartTime:   start,
			EndTime:     end,
			Description: strings.TrimSpace(in.Description),
		})
	}
	sort.SliceStable(intervals, func(i, j int) bool { return intervals[i].StartTime.Before(intervals[j].StartTime) })
	return intervals, nil
}
