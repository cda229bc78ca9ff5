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

const suggestedSlotColumns = `id, meeting_id, start_time, end_time, available_count, total_responded,
available_participant_ids, is_locked, calculated_at`

// SuggestedSlotRepository stores per-slot availability aggregates. (meeting_id, start_time,
// end_time) is unique.
type SuggestedSlotRepository struct {
	db *sqlx.DB
}

// NewSuggestedSlotRepository constructs the repository.
func NewSuggestedSlotRepository(db *sqlx.DB) *SuggestedSlotRepository {
	return &SuggestedSlotRepository{db: db}
}

func (r *SuggestedSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByMeeting returns every stored slot of the meeting ordered by start time.
func (r *SuggestedSlotRepository) ListByMeeting(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error) {
	const query = `SELECT ` + suggestedSlotColumns + ` FROM suggested_slots WHERE meeting_id = $1 ORDER BY start_time ASC, end_time ASC, id ASC`
	var slots []models.SuggestedSlot
	if err := r.db.SelectContext(ctx, &slots, query, meetingID); err != nil {
		return nil, fmt.Errorf("list suggested slots: %w", err)
	}
	return slots, nil
}

// FindByID returns a slot belonging to the meeting.
func (r *SuggestedSlotRepository) FindByID(ctx context.Context, meetingID, id string) (*models.SuggestedSlot, error) {
	const query = `SELECT ` + suggestedSlotColumns + ` FROM suggested_slots WHERE meeting_id = $1 AND id = $2`
	var slot models.SuggestedSlot
	if err := r.db.GetContext(ctx, &slot, query, meetingID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggested slot not found")
		}
		return nil, fmt.Errorf("get suggested slot: %w", err)
	}
	return &slot, nil
}

// Upsert writes the slot keyed by (meeting_id, start_time, end_time). calculated_at only moves
// when the aggregate changes, so re-running with identical data leaves rows untouched. The
// stored id, lock flag and calculation time are written back into slot.
func (r *SuggestedSlotRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, slot *models.SuggestedSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CalculatedAt.IsZero() {
		slot.CalculatedAt = time.Now().UTC()
	}
	if slot.AvailableParticipantIDs == nil {
		slot.AvailableParticipantIDs = []string{}
	}

	const query = `INSERT INTO suggested_slots (` + suggestedSlotColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
ON CONFLICT (meeting_id, start_time, end_time) DO UPDATE
SET available_count = EXCLUDED.available_count,
    total_responded = EXCLUDED.total_responded,
    available_participant_ids = EXCLUDED.available_participant_ids,
    calculated_at = CASE
        WHEN suggested_slots.available_count IS DISTINCT FROM EXCLUDED.available_count
          OR suggested_slots.total_responded IS DISTINCT FROM EXCLUDED.total_responded
          OR suggested_slots.available_participant_ids IS DISTINCT FROM EXCLUDED.available_participant_ids
        THEN EXCLUDED.calculated_at
        ELSE suggested_slots.calculated_at
    END
RETURNING id, is_locked, calculated_at`

	row := r.exec(exec).QueryRowxContext(ctx, query,
		slot.ID, slot.MeetingID, slot.StartTime, slot.EndTime,
		slot.AvailableCount, slot.TotalResponded, slot.AvailableParticipantIDs, slot.CalculatedAt)
	if err := row.Scan(&slot.ID, &slot.IsLocked, &slot.CalculatedAt); err != nil {
		return fmt.Errorf("upsert suggested slot: %w", err)
	}
	return nil
}

// DeleteByMeeting removes every slot of the meeting and reports how many were removed.
func (r *SuggestedSlotRepository) DeleteByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM suggested_slots WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return 0, fmt.Errorf("delete suggested slots: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// LockMeeting takes a transaction scoped advisory lock so concurrent rebuilds of one meeting
// serialise. exec must be a transaction.
func (r *SuggestedSlotRepository) LockMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, meetingID); err != nil {
		return fmt.Errorf("lock meeting suggestions: %w", err)
	}
	return nil
}

// DeleteOthers removes every slot of the meeting except keepID.
func (r *SuggestedSlotRepository) DeleteOthers(ctx context.Context, exec sqlx.ExtContext, meetingID, keepID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM suggested_slots WHERE meeting_id = $1 AND id <> $2`, meetingID, keepID); err != nil {
		return fmt.Errorf("delete other suggested slots: %w", err)
	}
	return nil
}

// MarkLocked flags the slot as the finalised meeting time.
func (r *SuggestedSlotRepository) MarkLocked(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE suggested_slots SET is_locked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("lock suggested slot: %w", err)
	}
	return requireRow(res, "suggested slot not found")
}
