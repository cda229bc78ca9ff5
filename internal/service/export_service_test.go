package service

import (
	"context"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweave/meeting-scheduler-api/internal/dto"
	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

func newExportFixture(hideNames bool) *ExportService {
	meeting := sampleMeeting()
	meeting.HideParticipantNames = hideNames
	meetings := newMeetingStoreStub(meeting)
	participants := &participantListerStub{participants: []models.Participant{
		{ID: "p-1", Name: "Ana", Responded: true},
		{ID: "p-2", Name: "Bo", Responded: true},
	}}
	slots := newMemorySlotRepo()
	slots.seed(
		models.SuggestedSlot{ID: "s-1", MeetingID: "m-1", StartTime: utc(2024, 1, 8, 9, 0), EndTime: utc(2024, 1, 8, 10, 0), AvailableCount: 1, TotalResponded: 2, AvailableParticipantIDs: pq.StringArray{"p-1"}},
		models.SuggestedSlot{ID: "s-2", MeetingID: "m-1", StartTime: utc(2024, 1, 8, 10, 0), EndTime: utc(2024, 1, 8, 11, 0), AvailableCount: 2, TotalResponded: 2, AvailableParticipantIDs: pq.StringArray{"p-1", "p-2"}},
	)
	suggestions := NewSuggestionService(meetings, meetings, participants, slots, nil, nil, nil, nil, nil, SuggestionConfig{DefaultLimit: 5, DefaultMinPct: 50})
	return NewExportService(suggestions, nil)
}

func TestExportCSVRanksSuggestions(t *testing.T) {
	svc := newExportFixture(false)

	file, err := svc.Export(context.Background(), "m-1", dto.ExportQuery{})
	require.NoError(t, err)

	assert.Equal(t, "sprint-planning-suggestions.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Rank,Date,Start,End,Available,Responded,Availability %,Participants", lines[0])
	assert.Equal(t, `1,Mon 2024-01-08,10:00,11:00,2,2,100.0,"Ana, Bo"`, lines[1])
	assert.Equal(t, "2,Mon 2024-01-08,09:00,10:00,1,2,50.0,Ana", lines[2])
}

func TestExportHonoursThresholdAndHiddenNames(t *testing.T) {
	svc := newExportFixture(true)
	minPct := 75.0

	file, err := svc.Export(context.Background(), "m-1", dto.ExportQuery{TopSuggestionsQuery: dto.TopSuggestionsQuery{MinPct: &minPct}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "Participants")
}

func TestExportPDF(t *testing.T) {
	svc := newExportFixture(false)

	file, err := svc.Export(context.Background(), "m-1", dto.ExportQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Body), "%PDF"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := newExportFixture(false).Export(context.Background(), "m-1", dto.ExportQuery{Format: "xlsx"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportFilenameFallsBack(t *testing.T) {
	assert.Equal(t, "meeting-suggestions.pdf", ExportFilename("???", "pdf"))
	assert.Equal(t, "q3-offsite-ha-noi-suggestions.csv", ExportFilename("Q3 Offsite: Hà Nội", "csv"))
}
