package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

const meetingColumns = `id, token, title, description, status, duration_minutes, step_size_minutes, timezone,
date_range_start, date_range_end, work_hours_start, work_hours_end, work_days_only, hide_participant_names,
response_deadline, created_by_email, created_at, updated_at`

// MeetingRepository persists meeting requests.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new meeting, assigning id and timestamps when missing.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = models.MeetingStatusActive
	}

	const query = `INSERT INTO meeting_requests (` + meetingColumns + `)
VALUES (:id, :token, :title, :description, :status, :duration_minutes, :step_size_minutes, :timezone,
:date_range_start, :date_range_end, :work_hours_start, :work_hours_end, :work_days_only, :hide_participant_names,
:response_deadline, :created_by_email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// FindByID returns a meeting by id.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	return r.findOne(ctx, "id", id)
}

// FindByToken returns a meeting by share token.
func (r *MeetingRepository) FindByToken(ctx context.Context, token string) (*models.Meeting, error) {
	return r.findOne(ctx, "token", token)
}

func (r *MeetingRepository) findOne(ctx context.Context, column, value string) (*models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s FROM meeting_requests WHERE %s = $1`, meetingColumns, column)
	var m models.Meeting
	if err := r.db.GetContext(ctx, &m, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, fmt.Errorf("get meeting by %s: %w", column, err)
	}
	return &m, nil
}

// List returns meetings newest first along with the total count for the filter.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedByEmail != "" {
		args = append(args, strings.ToLower(filter.CreatedByEmail))
		conditions = append(conditions, fmt.Sprintf("LOWER(created_by_email) = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM meeting_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count meetings: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	listArgs := append(append([]interface{}{}, args...), size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM meeting_requests%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d",
		meetingColumns, where, len(args)+1, len(args)+2)

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, total, nil
}

// Update overwrites the mutable meeting fields.
func (r *MeetingRepository) Update(ctx context.Context, m *models.Meeting) error {
	m.UpdatedAt = time.Now().UTC()
	const query = `UPDATE meeting_requests SET title = :title, description = :description, duration_minutes = :duration_minutes,
step_size_minutes = :step_size_minutes, timezone = :timezone, date_range_start = :date_range_start,
date_range_end = :date_range_end, work_hours_start = :work_hours_start, work_hours_end = :work_hours_end,
work_days_only = :work_days_only, hide_participant_names = :hide_participant_names,
response_deadline = :response_deadline, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	return requireRow(res, "meeting not found")
}

// UpdateStatus changes the lifecycle status.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MeetingStatus) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE meeting_requests SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	return requireRow(res, "meeting not found")
}

// Delete removes a meeting. Participants, busy slots and suggestions cascade.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meeting_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return requireRow(res, "meeting not found")
}

func requireRow(res sql.Result, notFound string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return nil
}
