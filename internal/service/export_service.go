package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
	"github.com/timeweave/meeting-scheduler-api/pkg/export"
)

type rankedSuggestionSource interface {
	MeetingFor(ctx context.Context, meetingID string) (*models.Meeting, error)
	GetTopSuggestions(ctx context.Context, meetingID string, limit int, minPct float64) ([]models.SuggestedSlot, error)
	Present(ctx context.Context, meeting *models.Meeting, slots []models.SuggestedSlot) ([]dto.SuggestionResponse, error)
	Defaults() (int, float64)
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders ranked suggestions as downloadable documents.
type ExportService struct {
	source    rankedSuggestionSource
	renderers map[string]export.Renderer
	logger    *zap.Logger
}

// NewExportService registers the CSV and PDF renderers.
func NewExportService(source rankedSuggestionSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	csv, pdf := export.NewCSVRenderer(), export.NewPDFRenderer()
	return &ExportService{
		source: source,
		renderers: map[string]export.Renderer{
			csv.Extension(): csv,
			pdf.Extension(): pdf,
		},
		logger: logger,
	}
}

// Export renders the meeting's ranked suggestions in the requested format (csv by default).
func (s *ExportService) Export(ctx context.Context, meetingID string, query dto.ExportQuery) (*ExportFile, error) {
	format := strings.ToLower(query.Format)
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	meeting, err := s.source.MeetingFor(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	limit, minPct := s.source.Defaults()
	if query.Limit != nil {
		limit = *query.Limit
	}
	if query.MinPct != nil {
		minPct = *query.MinPct
	}
	slots, err := s.source.GetTopSuggestions(ctx, meetingID, limit, minPct)
	if err != nil {
		return nil, err
	}
	rows, err := s.source.Present(ctx, meeting, slots)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(meeting.Timezone)
	if err != nil {
		loc = time.UTC
	}
	body, err := renderer.Render(SuggestionTable(meeting, rows, loc))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("suggestions exported", zap.String("meeting_id", meetingID), zap.String("format", format), zap.Int("rows", len(rows)))
	return &ExportFile{
		Filename:    ExportFilename(meeting.Title, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// SuggestionTable lays out ranked suggestions with times in loc.
func SuggestionTable(meeting *models.Meeting, rows []dto.SuggestionResponse, loc *time.Location) export.Table {
	headers := []string{"Rank", "Date", "Start", "End", "Available", "Responded", "Availability %"}
	if !meeting.HideParticipantNames {
		headers = append(headers, "Participants")
	}
	table := export.Table{
		Title:   meeting.Title,
		Caption: fmt.Sprintf("%s to %s, %d min, times in %s", meeting.DateRangeStart.Format(dateLayout), meeting.DateRangeEnd.Format(dateLayout), meeting.DurationMinutes, loc.String()),
		Headers: headers,
		Rows:    make([][]string, 0, len(rows)),
	}
	for i, r := range rows {
		start, end := r.StartTime.In(loc), r.EndTime.In(loc)
		row := []string{
			strconv.Itoa(i + 1),
			start.Format("Mon 2006-01-02"),
			start.Format("15:04"),
			end.Format("15:04"),
			strconv.Itoa(r.AvailableCount),
			strconv.Itoa(r.TotalResponded),
			strconv.FormatFloat(r.AvailabilityPercentage, 'f', 1, 64),
		}
		if !meeting.HideParticipantNames {
			row = append(row, strings.Join(r.AvailableParticipantNames, ", "))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// ExportFilename derives a download name from the meeting title.
func ExportFilename(title, ext string) string {
	base := slug.Make(title)
	if base == "" {
		base = "meeting"
	}
	return fmt.Sprintf("%s-suggestions.%s", base, ext)
}
