package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

const participantColumns = `id, meeting_id, name, email, timezone, responded, responded_at, created_at`

// ParticipantRepository persists participants and their busy intervals.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs the repository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts a participant. When an email is present and already registered for the
// meeting the existing row is renamed and returned instead.
func (r *ParticipantRepository) Upsert(ctx context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO participants (` + participantColumns + `)
VALUES ($1, $2, $3, $4, $5, FALSE, NULL, $6)
ON CONFLICT (meeting_id, email) WHERE email IS NOT NULL DO UPDATE
SET name = EXCLUDED.name, timezone = EXCLUDED.timezone
RETURNING ` + participantColumns
	row := r.db.QueryRowxContext(ctx, query, p.ID, p.MeetingID, p.Name, p.Email, p.Timezone, p.CreatedAt)
	if err := row.StructScan(p); err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// FindByID returns a participant of the meeting along with its busy intervals.
func (r *ParticipantRepository) FindByID(ctx context.Context, meetingID, id string) (*models.Participant, error) {
	const query = `SELECT ` + participantColumns + ` FROM participants WHERE meeting_id = $1 AND id = $2`
	var p models.Participant
	if err := r.db.GetContext(ctx, &p, query, meetingID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	list := []models.Participant{p}
	if err := r.attachBusyIntervals(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByMeeting returns participants in registration order with busy intervals attached.
func (r *ParticipantRepository) ListByMeeting(ctx context.Context, meetingID string) ([]models.Participant, error) {
	const query = `SELECT ` + participantColumns + ` FROM participants WHERE meeting_id = $1 ORDER BY created_at ASC, id ASC`
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, meetingID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if err := r.attachBusyIntervals(ctx, participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *ParticipantRepository) attachBusyIntervals(ctx context.Context, participants []models.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	ids := make([]string, len(participants))
	index := make(map[string]int, len(participants))
	for i := range participants {
		ids[i] = participants[i].ID
		index[participants[i].ID] = i
		participants[i].BusyIntervals = []models.BusyInterval{}
	}

	query, args, err := sqlx.In(`SELECT id, participant_id, start_time, end_time, description, created_at
FROM busy_slots WHERE participant_id IN (?) ORDER BY start_time ASC, id ASC`, ids)
	if err != nil {
		return fmt.Errorf("build busy slot query: %w", err)
	}
	var intervals []models.BusyInterval
	if err := r.db.SelectContext(ctx, &intervals, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("list busy slots: %w", err)
	}
	for _, interval := range intervals {
		if i, ok := index[interval.ParticipantID]; ok {
			participants[i].BusyIntervals = append(participants[i].BusyIntervals, interval)
		}
	}
	return nil
}

// ReplaceBusyIntervals swaps the participant's busy intervals for the given set.
func (r *ParticipantRepository) ReplaceBusyIntervals(ctx context.Context, exec sqlx.ExtContext, participantID string, intervals []models.BusyInterval) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM busy_slots WHERE participant_id = $1`, participantID); err != nil {
		return fmt.Errorf("clear busy slots: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO busy_slots (id, participant_id, start_time, end_time, description, created_at)
VALUES (:id, :participant_id, :start_time, :end_time, :description, :created_at)`
	for i := range intervals {
		interval := &intervals[i]
		if interval.ID == "" {
			interval.ID = uuid.NewString()
		}
		interval.ParticipantID = participantID
		if interval.CreatedAt.IsZero() {
			interval.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insert, interval); err != nil {
			return fmt.Errorf("insert busy slot: %w", err)
		}
	}
	return nil
}

// MarkResponded flags the participant as having submitted availability.
func (r *ParticipantRepository) MarkResponded(ctx context.Context, exec sqlx.ExtContext, participantID string, at time.Time) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE participants SET responded = TRUE, responded_at = $1 WHERE id = $2`, at, participantID)
	if err != nil {
		return fmt.Errorf("mark participant responded: %w", err)
	}
	return requireRow(res, "participant not found")
}

// Delete removes a participant of the meeting.
func (r *ParticipantRepository) Delete(ctx context.Context, meetingID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE meeting_id = $1 AND id = $2`, meetingID, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return requireRow(res, "participant not found")
}
