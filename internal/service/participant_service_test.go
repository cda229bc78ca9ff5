package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

type participantRepoStub struct {
	rows      []models.Participant
	replaced  map[string][]models.BusyInterval
	responded map[string]time.Time
}

func newParticipantRepoStub(rows ...models.Participant) *participantRepoStub {
	return &participantRepoStub{rows: rows, replaced: map[string][]models.BusyInterval{}, responded: map[string]time.Time{}}
}

func (r *participantRepoStub) Upsert(_ context.Context, p *models.Participant) error {
	if p.Email != nil {
		for i := range r.rows {
			if r.rows[i].MeetingID == p.MeetingID && r.rows[i].Email != nil && *r.rows[i].Email == *p.Email {
				r.rows[i].Name = p.Name
				*p = r.rows[i]
				return nil
			}
		}
	}
	p.ID = uuid.NewString()
	r.rows = append(r.rows, *p)
	return nil
}

func (r *participantRepoStub) FindByID(_ context.Context, meetingID, id string) (*models.Participant, error) {
	for i := range r.rows {
		if r.rows[i].MeetingID == meetingID && r.rows[i].ID == id {
			p := r.rows[i]
			return &p, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
}

func (r *participantRepoStub) ListByMeeting(_ context.Context, meetingID string) ([]models.Participant, error) {
	out := []models.Participant{}
	for _, p := range r.rows {
		if p.MeetingID == meetingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *participantRepoStub) ReplaceBusyIntervals(_ context.Context, _ sqlx.ExtContext, participantID string, intervals []models.BusyInterval) error {
	r.replaced[participantID] = intervals
	return nil
}

func (r *participantRepoStub) MarkResponded(_ context.Context, _ sqlx.ExtContext, participantID string, at time.Time) error {
	r.responded[participantID] = at
	return nil
}

func (r *participantRepoStub) Delete(_ context.Context, meetingID, id string) error {
	for i := range r.rows {
		if r.rows[i].MeetingID == meetingID && r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
}

type inviteNotifierStub struct {
	urls []string
}

func (n *inviteNotifierStub) NotifyInvited(_ context.Context, _ *models.Meeting, _ *models.Participant, respondURL string) {
	n.urls = append(n.urls, respondURL)
}

type regeneratorStub struct {
	calls []bool
	err   error
}

func (r *regeneratorStub) GenerateSuggestedSlots(_ context.Context, _ string, force bool) ([]models.SuggestedSlot, error) {
	r.calls = append(r.calls, force)
	return nil, r.err
}

type participantFixture struct {
	svc      *ParticipantService
	meetings *meetingStoreStub
	repo     *participantRepoStub
	notifier *inviteNotifierStub
	regen    *regeneratorStub
}

func newParticipantFixture(tx txProvider, rows ...models.Participant) *participantFixture {
	f := &participantFixture{
		meetings: newMeetingStoreStub(sampleMeeting()),
		repo:     newParticipantRepoStub(rows...),
		notifier: &inviteNotifierStub{},
		regen:    &regeneratorStub{},
	}
	tokens := NewTokenService(TokenConfig{Secret: "secret", Issuer: "timeweave", TTL: time.Hour})
	f.svc = NewParticipantService(f.meetings, f.repo, tx, tokens, f.notifier, f.regen, nil, nil, "https://tw.example/")
	return f
}

func TestInviteIssuesRespondLink(t *testing.T) {
	f := newParticipantFixture(nil)

	resp, err := f.svc.Invite(context.Background(), "m-1", dto.InviteParticipantRequest{Name: " Ana ", Email: "Ana@Example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Ana", resp.Name)
	require.NotNil(t, resp.Email)
	assert.Equal(t, "ana@example.com", *resp.Email)
	assert.Equal(t, "UTC", resp.Timezone)
	assert.Contains(t, resp.RespondURL, "https://tw.example/r/m-1/p/"+resp.ID+"?token=")
	assert.NotEmpty(t, resp.RespondToken)
	require.Len(t, f.notifier.urls, 1)
	assert.Equal(t, resp.RespondURL, f.notifier.urls[0])
}

func TestInviteWithoutEmailSkipsNotification(t *testing.T) {
	f := newParticipantFixture(nil)

	_, err := f.svc.Invite(context.Background(), "m-1", dto.InviteParticipantRequest{Name: "Bo"})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.urls)
}

func TestInviteRejectsLockedMeeting(t *testing.T) {
	f := newParticipantFixture(nil)
	f.meetings.meetings["m-1"].Status = models.MeetingStatusLocked

	_, err := f.svc.Invite(context.Background(), "m-1", dto.InviteParticipantRequest{Name: "Bo"})
	assert.True(t, appErrors.Is(err, appErrors.ErrFinalized))
}

func TestJoinChecksShareToken(t *testing.T) {
	f := newParticipantFixture(nil)

	_, err := f.svc.Join(context.Background(), "m-1", dto.JoinMeetingRequest{Token: "wrong", Name: "Eve"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	resp, err := f.svc.Join(context.Background(), "m-1", dto.JoinMeetingRequest{Token: "share-token", Name: "Eve", Timezone: "Europe/Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", resp.Timezone)
}

func TestJoinUpsertsByEmail(t *testing.T) {
	f := newParticipantFixture(nil)
	req := dto.JoinMeetingRequest{Token: "share-token", Name: "Eve", Email: "eve@example.com"}

	first, err := f.svc.Join(context.Background(), "m-1", req)
	require.NoError(t, err)
	req.Name = "Eve B."
	second, err := f.svc.Join(context.Background(), "m-1", req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Eve B.", second.Name)
	assert.Len(t, f.repo.rows, 1)
}

func TestJoinRejectsInactiveMeeting(t *testing.T) {
	f := newParticipantFixture(nil)
	f.meetings.meetings["m-1"].Status = models.MeetingStatusDraft

	_, err := f.svc.Join(context.Background(), "m-1", dto.JoinMeetingRequest{Token: "share-token", Name: "Eve"})
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestSubmitAvailabilityStoresUTCAndRegenerates(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	f := newParticipantFixture(tx, models.Participant{ID: "p-1", MeetingID: "m-1", Name: "Ana", Timezone: "Asia/Ho_Chi_Minh"})

	p, err := f.svc.SubmitAvailability(context.Background(), "m-1", "p-1", dto.SubmitAvailabilityRequest{
		BusySlots: []dto.BusyIntervalInput{
			{Start: "2024-01-08T16:00", End: "2024-01-08T17:30"},
			{Start: "2024-01-08T09:00:00Z", End: "2024-01-08T11:00:00+01:00"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	stored := f.repo.replaced["p-1"]
	require.Len(t, stored, 2)
	assert.Equal(t, utc(2024, 1, 8, 9, 0), stored[0].StartTime)
	assert.Equal(t, utc(2024, 1, 8, 10, 30), stored[0].EndTime)
	assert.Equal(t, utc(2024, 1, 8, 9, 0), stored[1].StartTime)
	assert.Equal(t, utc(2024, 1, 8, 10, 0), stored[1].EndTime)
	assert.True(t, p.Responded)
	assert.Contains(t, f.repo.responded, "p-1")
	assert.Equal(t, []bool{true}, f.regen.calls)
}

func TestSubmitAvailabilityRejectsInvertedInterval(t *testing.T) {
	f := newParticipantFixture(nil, models.Participant{ID: "p-1", MeetingID: "m-1", Timezone: "UTC"})

	_, err := f.svc.SubmitAvailability(context.Background(), "m-1", "p-1", dto.SubmitAvailabilityRequest{
		BusySlots: []dto.BusyIntervalInput{{Start: "2024-01-08T10:00", End: "2024-01-08T10:00"}},
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.replaced)
	assert.Empty(t, f.regen.calls)
}

func TestSubmitAvailabilityRequiresActiveMeeting(t *testing.T) {
	f := newParticipantFixture(nil, models.Participant{ID: "p-1", MeetingID: "m-1"})
	past := time.Now().Add(-time.Hour)
	f.meetings.meetings["m-1"].ResponseDeadline = &past

	_, err := f.svc.SubmitAvailability(context.Background(), "m-1", "p-1", dto.SubmitAvailabilityRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestRemoveParticipantRegenerates(t *testing.T) {
	f := newParticipantFixture(nil, models.Participant{ID: "p-1", MeetingID: "m-1"})

	require.NoError(t, f.svc.Remove(context.Background(), "m-1", "p-1"))
	assert.Empty(t, f.repo.rows)
	assert.Equal(t, []bool{true}, f.regen.calls)
}

func TestParseInstant(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := map[string]time.Time{
		"2024-01-08T09:00:00Z":      utc(2024, 1, 8, 9, 0),
		"2024-01-08T09:00:00-02:00": utc(2024, 1, 8, 11, 0),
		"2024-01-08T09:00":          utc(2024, 1, 8, 14, 0),
		"2024-01-08 09:00:00":       utc(2024, 1, 8, 14, 0),
	}
	for raw, want := range cases {
		got, err := ParseInstant(raw, loc)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}

	_, err = ParseInstant("next tuesday", loc)
	assert.Error(t, err)
}
