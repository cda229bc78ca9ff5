package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	"github.com/timeweave/meeting-scheduler-api/pkg/database"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

type meetingReader interface {
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
}

type participantLister interface {
	ListByMeeting(ctx context.Context, meetingID string) ([]models.Participant, error)
}

type suggestedSlotRepository interface {
	ListByMeeting(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error)
	FindByID(ctx context.Context, meetingID, id string) (*models.SuggestedSlot, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, slot *models.SuggestedSlot) error
	DeleteByMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID string) (int64, error)
	LockMeeting(ctx context.Context, exec sqlx.ExtContext, meetingID string) error
	DeleteOthers(ctx context.Context, exec sqlx.ExtContext, meetingID, keepID string) error
	MarkLocked(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type meetingStatusWriter interface {
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MeetingStatus) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type lockNotifier interface {
	NotifyLocked(ctx context.Context, meeting *models.Meeting, slot *models.SuggestedSlot, participants []models.Participant)
}

// SuggestionConfig tunes ranking defaults and rebuild retries.
type SuggestionConfig struct {
	DefaultLimit       int
	DefaultMinPct      float64
	RegenerateAttempts int
	RetryBackoff       time.Duration
	CacheTTL           time.Duration
}

// SuggestionService computes, persists and ranks suggested slots.
type SuggestionService struct {
	meetings     meetingReader
	statuses     meetingStatusWriter
	participants participantLister
	slots        suggestedSlotRepository
	tx           txProvider
	cache        *CacheService
	metrics      *MetricsService
	notifier     lockNotifier
	logger       *zap.Logger
	cfg          SuggestionConfig
	now          func() time.Time
}

// NewSuggestionService wires suggestion dependencies. cache, metrics and notifier may be nil.
func NewSuggestionService(
	meetings meetingReader,
	statuses meetingStatusWriter,
	participants participantLister,
	slots suggestedSlotRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	notifier lockNotifier,
	logger *zap.Logger,
	cfg SuggestionConfig,
) *SuggestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.RegenerateAttempts <= 0 {
		cfg.RegenerateAttempts = 3
	}
	return &SuggestionService{
		meetings:     meetings,
		statuses:     statuses,
		participants: participants,
		slots:        slots,
		tx:           tx,
		cache:        cache,
		metrics:      metrics,
		notifier:     notifier,
		logger:       logger,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Defaults returns the configured limit and threshold.
func (s *SuggestionService) Defaults() (int, float64) {
	return s.cfg.DefaultLimit, s.cfg.DefaultMinPct
}

// GenerateSuggestedSlots recomputes availability for every grid slot of the meeting and returns
// one record per slot in grid order. Without force each slot is upserted independently and rows
// outside the current grid are left alone. With force the meeting's rows are replaced inside a
// single transaction, retried as a whole on transient failures.
func (s *SuggestionService) GenerateSuggestedSlots(ctx context.Context, meetingID string, force bool) ([]models.SuggestedSlot, error) {
	started := time.Now()
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	if meeting.Status == models.MeetingStatusLocked {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "meeting time is already locked")
	}
	grid, err := GenerateSlots(meeting.Config())
	if err != nil {
		return nil, err
	}

	var result []models.SuggestedSlot
	if force {
		policy := database.RetryPolicy{Attempts: s.cfg.RegenerateAttempts, Backoff: s.cfg.RetryBackoff}
		err = database.Retry(ctx, policy, func(attempt int) error {
			if attempt > 1 {
				s.logger.Warn("retrying suggestion rebuild", zap.String("meeting_id", meetingID), zap.Int("attempt", attempt))
			}
			var runErr error
			result, runErr = s.rebuild(ctx, meetingID, grid)
			return runErr
		})
	} else {
		result, err = s.upsertAll(ctx, nil, meetingID, grid)
	}
	if err != nil {
		return nil, storageError(err, "failed to store suggested slots")
	}

	s.invalidate(ctx, meetingID)
	s.metrics.ObserveSuggestionGeneration(force, len(result), time.Since(started))
	s.logger.Info("suggested slots generated",
		zap.String("meeting_id", meetingID),
		zap.Bool("force", force),
		zap.Int("slots", len(result)),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

func (s *SuggestionService) rebuild(ctx context.Context, meetingID string, grid []models.TimeRange) ([]models.SuggestedSlot, error) {
	var result []models.SuggestedSlot
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.slots.LockMeeting(ctx, tx, meetingID); err != nil {
			return err
		}
		removed, err := s.slots.DeleteByMeeting(ctx, tx, meetingID)
		if err != nil {
			return err
		}
		s.logger.Debug("cleared suggested slots", zap.String("meeting_id", meetingID), zap.Int64("removed", removed))
		result, err = s.upsertAll(ctx, tx, meetingID, grid)
		return err
	})
	return result, err
}

func (s *SuggestionService) upsertAll(ctx context.Context, exec sqlx.ExtContext, meetingID string, grid []models.TimeRange) ([]models.SuggestedSlot, error) {
	participants, err := s.participants.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	calculatedAt := s.now()
	result := make([]models.SuggestedSlot, 0, len(grid))
	for _, slot := range grid {
		agg := CalculateSlotAvailability(participants, slot.Start, slot.End)
		record := models.SuggestedSlot{
			MeetingID:               meetingID,
			StartTime:               slot.Start,
			EndTime:                 slot.End,
			AvailableCount:          agg.AvailableCount,
			TotalResponded:          agg.TotalResponded,
			AvailableParticipantIDs: pq.StringArray(agg.AvailableParticipantIDs),
			CalculatedAt:            calculatedAt,
		}
		if err := s.slots.Upsert(ctx, exec, &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

// GetTopSuggestions returns stored suggestions ranked by SelectTopSuggestions.
func (s *SuggestionService) GetTopSuggestions(ctx context.Context, meetingID string, limit int, minPct float64) ([]models.SuggestedSlot, error) {
	slots, err := s.listSlots(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return SelectTopSuggestions(slots, limit, minPct), nil
}

// SelectTopSuggestions keeps slots whose unrounded availability percentage is at least minPct,
// orders them by available count descending then start time ascending, and truncates to limit.
// A limit of zero or less yields an empty list. Remaining ties are broken by id so repeated
// calls over unchanged data agree.
func SelectTopSuggestions(slots []models.SuggestedSlot, limit int, minPct float64) []models.SuggestedSlot {
	if limit <= 0 {
		return []models.SuggestedSlot{}
	}
	filtered := make([]models.SuggestedSlot, 0, len(slots))
	for i := range slots {
		if slots[i].AvailabilityPercentage() >= minPct {
			filtered = append(filtered, slots[i])
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.AvailableCount != b.AvailableCount {
			return a.AvailableCount > b.AvailableCount
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// ListSuggestions returns every stored suggestion in chronological order.
func (s *SuggestionService) ListSuggestions(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error) {
	return s.listSlots(ctx, meetingID)
}

func (s *SuggestionService) listSlots(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error) {
	if _, err := s.meetings.FindByID(ctx, meetingID); err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	return s.cachedSlots(ctx, meetingID)
}

func (s *SuggestionService) cachedSlots(ctx context.Context, meetingID string) ([]models.SuggestedSlot, error) {
	key := suggestionCacheKey(meetingID)
	var cached []models.SuggestedSlot
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	slots, err := s.slots.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load suggested slots")
	}
	if slots == nil {
		slots = []models.SuggestedSlot{}
	}
	s.cache.Set(ctx, key, slots, s.cfg.CacheTTL)
	return slots, nil
}

// LockSlot finalises the meeting on slotID: other suggestions are removed, the slot is flagged
// and the meeting moves to locked. Participants with an email are notified afterwards.
func (s *SuggestionService) LockSlot(ctx context.Context, meetingID, slotID string) (*models.SuggestedSlot, error) {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, storageError(err, "failed to load meeting")
	}
	switch meeting.Status {
	case models.MeetingStatusLocked:
		return nil, appErrors.Clone(appErrors.ErrFinalized, "meeting time is already locked")
	case models.MeetingStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrFinalized, "meeting is cancelled")
	}
	slot, err := s.slots.FindByID(ctx, meetingID, slotID)
	if err != nil {
		return nil, storageError(err, "failed to load suggested slot")
	}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.slots.LockMeeting(ctx, tx, meetingID); err != nil {
			return err
		}
		if err := s.slots.DeleteOthers(ctx, tx, meetingID, slotID); err != nil {
			return err
		}
		if err := s.slots.MarkLocked(ctx, tx, slotID); err != nil {
			return err
		}
		return s.statuses.UpdateStatus(ctx, tx, meetingID, models.MeetingStatusLocked)
	})
	if err != nil {
		return nil, storageError(err, "failed to lock meeting time")
	}
	slot.IsLocked = true
	meeting.Status = models.MeetingStatusLocked
	s.invalidate(ctx, meetingID)
	s.logger.Info("meeting time locked", zap.String("meeting_id", meetingID), zap.String("slot_id", slotID), zap.Time("start", slot.StartTime))

	if s.notifier != nil {
		participants, err := s.participants.ListByMeeting(ctx, meetingID)
		if err != nil {
			s.logger.Warn("skipping lock notifications", zap.String("meeting_id", meetingID), zap.Error(err))
		} else {
			s.notifier.NotifyLocked(ctx, meeting, slot, participants)
		}
	}
	return slot, nil
}

// InvalidateMeeting drops cached reads for the meeting.
func (s *SuggestionService) InvalidateMeeting(ctx context.Context, meetingID string) {
	s.invalidate(ctx, meetingID)
}

func (s *SuggestionService) invalidate(ctx context.Context, meetingID string) {
	s.cache.Invalidate(ctx, suggestionCacheKey(meetingID))
}

func suggestionCacheKey(meetingID string) string {
	return fmt.Sprintf("suggestions:%s", meetingID)
}
