package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

type lockNotifierStub struct {
	calls        int
	participants []models.Participant
}

func (n *lockNotifierStub) NotifyLocked(_ context.Context, _ *models.Meeting, _ *models.SuggestedSlot, participants []models.Participant) {
	n.calls++
	n.participants = participants
}

type suggestionFixture struct {
	svc          *SuggestionService
	meetings     *meetingStoreStub
	participants *participantListerStub
	slots        *memorySlotRepo
	notifier     *lockNotifierStub
}

func newSuggestionFixture(t *testing.T, tx txProvider) *suggestionFixture {
	f := &suggestionFixture{
		meetings: newMeetingStoreStub(sampleMeeting()),
		participants: &participantListerStub{participants: []models.Participant{
			{ID: "p-1", Responded: true},
			{ID: "p-2", Responded: true, BusyIntervals: []models.BusyInterval{busy(utc(2024, 1, 8, 9, 0), utc(2024, 1, 8, 9, 30))}},
			{ID: "p-3", Responded: false, BusyIntervals: []models.BusyInterval{busy(utc(2024, 1, 8, 10, 0), utc(2024, 1, 8, 11, 0))}},
		}},
		slots:    newMemorySlotRepo(),
		notifier: &lockNotifierStub{},
	}
	f.svc = NewSuggestionService(f.meetings, f.meetings, f.participants, f.slots, tx, nil, NewMetricsService(), f.notifier, nil,
		SuggestionConfig{DefaultLimit: 10, DefaultMinPct: 50, RegenerateAttempts: 2})
	return f
}

func TestGenerateSuggestedSlotsIncremental(t *testing.T) {
	f := newSuggestionFixture(t, nil)

	slots, err := f.svc.GenerateSuggestedSlots(context.Background(), "m-1", false)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	assert.Equal(t, utc(2024, 1, 8, 9, 0), slots[0].StartTime)
	assert.Equal(t, 1, slots[0].AvailableCount)
	assert.Equal(t, 2, slots[0].TotalResponded)
	assert.Equal(t, pq.StringArray{"p-1"}, slots[0].AvailableParticipantIDs)

	assert.Equal(t, 2, slots[2].AvailableCount)
	assert.Equal(t, pq.StringArray{"p-1", "p-2"}, slots[2].AvailableParticipantIDs)
	assert.Equal(t, 0, f.slots.lockCalls)
}

func TestGenerateSuggestedSlotsIsIdempotent(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.GenerateSuggestedSlots(ctx, "m-1", false)
	require.NoError(t, err)
	f.svc.now = func() time.Time { return utc(2030, 1, 1, 0, 0) }
	second, err := f.svc.GenerateSuggestedSlots(ctx, "m-1", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	stored, err := f.slots.ListByMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestGenerateSuggestedSlotsIncrementalKeepsStaleRows(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	stale := models.SuggestedSlot{MeetingID: "m-1", StartTime: utc(2024, 1, 1, 9, 0), EndTime: utc(2024, 1, 1, 10, 0)}
	f.slots.seed(stale)

	slots, err := f.svc.GenerateSuggestedSlots(context.Background(), "m-1", false)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
	stored, _ := f.slots.ListByMeeting(context.Background(), "m-1")
	assert.Len(t, stored, 4)
}

func TestGenerateSuggestedSlotsForceReplacesStaleRows(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newSuggestionFixture(t, tx)
	for i := 0; i < 10; i++ {
		f.slots.seed(models.SuggestedSlot{MeetingID: "m-1", StartTime: utc(2023, 12, 1, i, 0), EndTime: utc(2023, 12, 1, i+1, 0)})
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	slots, err := f.svc.GenerateSuggestedSlots(context.Background(), "m-1", true)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	stored, _ := f.slots.ListByMeeting(context.Background(), "m-1")
	require.Len(t, stored, 3)
	for i := range stored {
		assert.Equal(t, slots[i].StartTime, stored[i].StartTime)
	}
	assert.Equal(t, 1, f.slots.lockCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSuggestedSlotsForceRollsBackOnFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newSuggestionFixture(t, tx)
	f.slots.failAfter = 1
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.svc.GenerateSuggestedSlots(context.Background(), "m-1", true)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSuggestedSlotsRejectsLockedMeeting(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	f.meetings.meetings["m-1"].Status = models.MeetingStatusLocked

	_, err := f.svc.GenerateSuggestedSlots(context.Background(), "m-1", false)
	assert.True(t, appErrors.Is(err, appErrors.ErrFinalized))
}

func TestGenerateSuggestedSlotsUnknownMeeting(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	_, err := f.svc.GenerateSuggestedSlots(context.Background(), "missing", false)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func rankedFixture() []models.SuggestedSlot {
	base := utc(2024, 1, 8, 0, 0)
	var slots []models.SuggestedSlot
	// 12 slots at or above 50% and 8 below, out of 10 responders.
	counts := []int{5, 9, 7, 10, 5, 6, 8, 9, 6, 7, 5, 10, 4, 1, 0, 3, 2, 4, 1, 0}
	for i, c := range counts {
		slots = append(slots, models.SuggestedSlot{
			ID:             fmt.Sprintf("s-%02d", i),
			MeetingID:      "m-1",
			StartTime:      base.Add(time.Duration(i) * 30 * time.Minute),
			EndTime:        base.Add(time.Duration(i)*30*time.Minute + time.Hour),
			AvailableCount: c,
			TotalResponded: 10,
		})
	}
	return slots
}

func TestSelectTopSuggestionsTakesBestOfQualifying(t *testing.T) {
	top := SelectTopSuggestions(rankedFixture(), 10, 50)
	require.Len(t, top, 10)
	assert.Equal(t, "s-03", top[0].ID)
	assert.Equal(t, "s-11", top[1].ID)
	for _, s := range top {
		assert.GreaterOrEqual(t, s.AvailabilityPercentage(), 50.0)
	}
	for i := 1; i < len(top); i++ {
		a, b := top[i-1], top[i]
		assert.True(t, a.AvailableCount > b.AvailableCount || (a.AvailableCount == b.AvailableCount && !a.StartTime.After(b.StartTime)))
	}
	// the two lowest qualifying slots (5/10 at s-04 and s-10) are cut by the limit
	for _, s := range top {
		assert.NotContains(t, []string{"s-04", "s-10"}, s.ID)
	}
}

func TestSelectTopSuggestionsLimits(t *testing.T) {
	slots := rankedFixture()
	assert.Empty(t, SelectTopSuggestions(slots, 0, 0))
	assert.Empty(t, SelectTopSuggestions(slots, -3, 0))
	assert.NotNil(t, SelectTopSuggestions(slots, -3, 0))
	assert.Len(t, SelectTopSuggestions(slots, 100, 0), 20)
	assert.Len(t, SelectTopSuggestions(slots, 100, 100), 2)
}

func TestSelectTopSuggestionsThresholdIsUnroundedAndMonotonic(t *testing.T) {
	slots := []models.SuggestedSlot{
		{ID: "a", AvailableCount: 3, TotalResponded: 7, StartTime: utc(2024, 1, 8, 9, 0)},
		{ID: "b", AvailableCount: 0, TotalResponded: 0, StartTime: utc(2024, 1, 8, 10, 0)},
	}
	assert.Len(t, SelectTopSuggestions(slots, 10, 42.857), 1)
	assert.Empty(t, SelectTopSuggestions(slots, 10, 42.86))
	assert.Len(t, SelectTopSuggestions(slots, 10, 0), 2)

	data := rankedFixture()
	prev := len(SelectTopSuggestions(data, 15, 0))
	for pct := 5.0; pct <= 100; pct += 5 {
		n := len(SelectTopSuggestions(data, 15, pct))
		assert.LessOrEqual(t, n, prev)
		prev = n
	}
}

func TestSelectTopSuggestionsStableAcrossCalls(t *testing.T) {
	slots := rankedFixture()
	for i := range slots {
		slots[i].StartTime = utc(2024, 1, 8, 9, 0)
		slots[i].AvailableCount = 5
	}
	first := SelectTopSuggestions(slots, 20, 0)
	reversed := make([]models.SuggestedSlot, len(slots))
	for i := range slots {
		reversed[len(slots)-1-i] = slots[i]
	}
	assert.Equal(t, first, SelectTopSuggestions(reversed, 20, 0))
	assert.Equal(t, "s-00", first[0].ID)
}

func TestGetTopSuggestionsReadsStoredSlots(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	f.slots.seed(rankedFixture()...)

	top, err := f.svc.GetTopSuggestions(context.Background(), "m-1", 3, 90)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"s-03", "s-11", "s-01"}, []string{top[0].ID, top[1].ID, top[2].ID})
}

func TestLockSlotFinalisesMeeting(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newSuggestionFixture(t, tx)
	f.slots.seed(rankedFixture()...)
	mock.ExpectBegin()
	mock.ExpectCommit()

	slot, err := f.svc.LockSlot(context.Background(), "m-1", "s-05")
	require.NoError(t, err)
	assert.True(t, slot.IsLocked)

	stored, _ := f.slots.ListByMeeting(context.Background(), "m-1")
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsLocked)
	assert.Equal(t, []models.MeetingStatus{models.MeetingStatusLocked}, f.meetings.statuses)
	assert.Equal(t, 1, f.notifier.calls)
	assert.Len(t, f.notifier.participants, 3)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = f.svc.LockSlot(context.Background(), "m-1", "s-05")
	assert.True(t, appErrors.Is(err, appErrors.ErrFinalized))
}

func TestLockSlotUnknownSlot(t *testing.T) {
	f := newSuggestionFixture(t, nil)
	_, err := f.svc.LockSlot(context.Background(), "m-1", "nope")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Zero(t, f.notifier.calls)
}
