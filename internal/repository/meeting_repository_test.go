package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

var meetingRowColumns = []string{"id", "token", "title", "description", "status", "duration_minutes", "step_size_minutes", "timezone",
	"date_range_start", "date_range_end", "work_hours_start", "work_hours_end", "work_days_only", "hide_participant_names",
	"response_deadline", "created_by_email", "created_at", "updated_at"}

func TestMeetingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meeting_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	m := &models.Meeting{Title: "Kickoff", Token: "tok", DurationMinutes: 60, StepSizeMinutes: 30, Timezone: "UTC"}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, models.MeetingStatusActive, m.Status)
	assert.False(t, m.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryFindByIDScansTimeOfDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(meetingRowColumns).AddRow(
		"m-1", "tok", "Kickoff", "", "active", 60, 30, "Asia/Ho_Chi_Minh",
		day, day, "09:00:00", "18:00:00", true, false, nil, nil, day, day)
	mock.ExpectQuery(regexp.QuoteMeta("FROM meeting_requests WHERE id = $1")).
		WithArgs("m-1").
		WillReturnRows(rows)

	m, err := repo.FindByID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(9, 0), m.WorkHoursStart)
	assert.Equal(t, models.NewTimeOfDay(18, 0), m.WorkHoursEnd)
	assert.Nil(t, m.ResponseDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryFindByTokenNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM meeting_requests WHERE token = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestMeetingRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM meeting_requests WHERE status = $1 AND LOWER(created_by_email) = $2")).
		WithArgs(models.MeetingStatusActive, "owner@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id ASC LIMIT $3 OFFSET $4")).
		WithArgs(models.MeetingStatusActive, "owner@example.com", 10, 10).
		WillReturnRows(sqlmock.NewRows(meetingRowColumns).AddRow(
			"m-1", "tok", "Kickoff", "", "active", 60, 30, "UTC",
			day, day, "09:00:00", "18:00:00", true, false, nil, "owner@example.com", day, day))

	meetings, total, err := repo.List(context.Background(), models.MeetingFilter{
		Status: models.MeetingStatusActive, CreatedByEmail: "Owner@Example.com", Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, meetings, 1)
	assert.Equal(t, "owner@example.com", *meetings[0].CreatedByEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meeting_requests SET status = $1")).
		WithArgs(models.MeetingStatusLocked, sqlmock.AnyArg(), "m-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "m-404", models.MeetingStatusLocked)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
