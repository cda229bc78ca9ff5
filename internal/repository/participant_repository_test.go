package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

var participantRowColumns = []string{"id", "meeting_id", "name", "email", "timezone", "responded", "responded_at", "created_at"}

func TestParticipantRepositoryListByMeetingAttachesIntervals(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM participants WHERE meeting_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(participantRowColumns).
			AddRow("p-1", "m-1", "Ann", nil, "UTC", true, created, created).
			AddRow("p-2", "m-1", "Bob", "bob@example.com", "UTC", false, nil, created.Add(time.Minute)))

	busyStart := time.Date(2024, 1, 8, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM busy_slots WHERE participant_id IN (?, ?)")).
		WithArgs("p-1", "p-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_id", "start_time", "end_time", "description", "created_at"}).
			AddRow("b-1", "p-1", busyStart, busyStart.Add(time.Hour), "", created))

	participants, err := repo.ListByMeeting(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "p-1", participants[0].ID)
	require.Len(t, participants[0].BusyIntervals, 1)
	assert.Equal(t, busyStart, participants[0].BusyIntervals[0].StartTime)
	assert.Empty(t, participants[1].BusyIntervals)
	assert.NotNil(t, participants[1].BusyIntervals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryUpsertReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	email := "ann@example.com"
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (meeting_id, email) WHERE email IS NOT NULL DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "m-1", "Ann", email, "UTC", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(participantRowColumns).
			AddRow("p-existing", "m-1", "Ann", email, "UTC", true, created, created))

	p := &models.Participant{MeetingID: "m-1", Name: "Ann", Email: &email, Timezone: "UTC"}
	require.NoError(t, repo.Upsert(context.Background(), p))
	assert.Equal(t, "p-existing", p.ID)
	assert.True(t, p.Responded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryReplaceBusyIntervals(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	start := time.Date(2024, 1, 8, 2, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM busy_slots WHERE participant_id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO busy_slots")).
		WithArgs(sqlmock.AnyArg(), "p-1", start, start.Add(time.Hour), "dentist", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE participants SET responded = TRUE")).
		WithArgs(start, "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	intervals := []models.BusyInterval{{StartTime: start, EndTime: start.Add(time.Hour), Description: "dentist"}}
	require.NoError(t, repo.ReplaceBusyIntervals(context.Background(), tx, "p-1", intervals))
	require.NoError(t, repo.MarkResponded(context.Background(), tx, "p-1", start))
	require.NoError(t, tx.Commit())

	assert.Equal(t, "p-1", intervals[0].ParticipantID)
	assert.NotEmpty(t, intervals[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
