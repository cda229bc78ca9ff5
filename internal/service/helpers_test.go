package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func busy(start, end time.Time) models.BusyInterval {
	return models.BusyInterval{StartTime: start, EndTime: end}
}

func sampleMeeting() *models.Meeting {
	return &models.Meeting{
		ID:              "m-1",
		Token:           "share-token",
		Title:           "Sprint planning",
		Status:          models.MeetingStatusActive,
		DurationMinutes: 60,
		StepSizeMinutes: 30,
		Timezone:        "UTC",
		DateRangeStart:  utc(2024, time.January, 8, 0, 0),
		DateRangeEnd:    utc(2024, time.January, 8, 0, 0),
		WorkHoursStart:  models.NewTimeOfDay(9, 0),
		WorkHoursEnd:    models.NewTimeOfDay(11, 0),
		WorkDaysOnly:    true,
	}
}

type meetingStoreStub struct {
	mu       sync.Mutex
	meetings map[string]*models.Meeting
	statuses []models.MeetingStatus
}

func newMeetingStoreStub(meetings ...*models.Meeting) *meetingStoreStub {
	s := &meetingStoreStub{meetings: map[string]*models.Meeting{}}
	for _, m := range meetings {
		s.meetings[m.ID] = m
	}
	return s
}

func (s *meetingStoreStub) FindByID(_ context.Context, id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
	}
	cp := *m
	return &cp, nil
}

func (s *meetingStoreStub) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
	}
	m.Status = status
	s.statuses = append(s.statuses, status)
	return nil
}

type participantListerStub struct {
	participants []models.Participant
	err          error
}

func (s *participantListerStub) ListByMeeting(context.Context, string) ([]models.Participant, error) {
	return s.participants, s.err
}

type slotKey struct {
	meetingID  string
	start, end int64
}

// memorySlotRepo mimics the unique (meeting, start, end) upsert contract of the SQL repository.
type memorySlotRepo struct {
	mu        sync.Mutex
	rows      map[slotKey]models.SuggestedSlot
	failAfter int
	upserts   int
	lockCalls int
}

func newMemorySlotRepo() *memorySlotRepo {
	return &memorySlotRepo{rows: map[slotKey]models.SuggestedSlot{}, failAfter: -1}
}

func keyOf(s models.SuggestedSlot) slotKey {
	return slotKey{s.MeetingID, s.StartTime.UnixNano(), s.EndTime.UnixNano()}
}

func (r *memorySlotRepo) seed(slots ...models.SuggestedSlot) {
	for _, s := range slots {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		r.rows[keyOf(s)] = s
	}
}

func (r *memorySlotRepo) ListByMeeting(_ context.Context, meetingID string) ([]models.SuggestedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SuggestedSlot
	for _, s := range r.rows {
		if s.MeetingID == meetingID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memorySlotRepo) FindByID(_ context.Context, meetingID, id string) (*models.SuggestedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.MeetingID == meetingID && s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "suggested slot not found")
}

func (r *memorySlotRepo) Upsert(_ context.Context, _ sqlx.ExtContext, slot *models.SuggestedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAfter >= 0 && r.upserts >= r.failAfter {
		return fmt.Errorf("upsert failed")
	}
	r.upserts++
	k := keyOf(*slot)
	if existing, ok := r.rows[k]; ok {
		slot.ID = existing.ID
		slot.IsLocked = existing.IsLocked
		if existing.AvailableCount == slot.AvailableCount && existing.TotalResponded == slot.TotalResponded &&
			fmt.Sprint(existing.AvailableParticipantIDs) == fmt.Sprint(slot.AvailableParticipantIDs) {
			slot.CalculatedAt = existing.CalculatedAt
		}
	} else if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	r.rows[k] = *slot
	return nil
}

func (r *memorySlotRepo) DeleteByMeeting(_ context.Context, _ sqlx.ExtContext, meetingID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.rows {
		if s.MeetingID == meetingID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *memorySlotRepo) LockMeeting(context.Context, sqlx.ExtContext, string) error {
	r.mu.Lock()
	r.lockCalls++
	r.mu.Unlock()
	return nil
}

func (r *memorySlotRepo) DeleteOthers(_ context.Context, _ sqlx.ExtContext, meetingID, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.rows {
		if s.MeetingID == meetingID && s.ID != keepID {
			delete(r.rows, k)
		}
	}
	return nil
}

func (r *memorySlotRepo) MarkLocked(_ context.Context, _ sqlx.ExtContext, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.rows {
		if s.ID == id {
			s.IsLocked = true
			r.rows[k] = s
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "suggested slot not found")
}
