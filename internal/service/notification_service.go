package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	"github.com/timeweave/meeting-scheduler-api/pkg/jobs"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("meeting_id", n.MeetingID),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
	)
	return nil
}

// HTTPSenderConfig configures the transactional email endpoint.
type HTTPSenderConfig struct {
	Endpoint string
	APIKey   string
	From     string
	Timeout  time.Duration
}

// HTTPSender posts notifications as JSON to an email delivery API.
type HTTPSender struct {
	cfg    HTTPSenderConfig
	client *http.Client
}

// NewHTTPSender builds an HTTPSender.
func NewHTTPSender(cfg HTTPSenderConfig) *HTTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send implements Sender. Non-2xx answers are errors so the queue retries them.
func (s *HTTPSender) Send(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(emailPayload{From: s.cfg.From, To: []string{n.Recipient}, Subject: n.Subject, Text: n.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// NotificationService renders invitation and lock messages and hands them to a job dispatcher.
type NotificationService struct {
	dispatcher jobs.Dispatcher
	sender     Sender
	metrics    *MetricsService
	logger     *zap.Logger
	siteName   string
}

// NewNotificationService builds the service. Without a dispatcher messages are sent inline.
func NewNotificationService(sender Sender, metrics *MetricsService, logger *zap.Logger, siteName string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	if siteName == "" {
		siteName = "TimeWeave"
	}
	return &NotificationService{sender: sender, metrics: metrics, logger: logger, siteName: siteName}
}

// UseDispatcher routes notifications through d. The dispatcher's handler should be Handle.
func (s *NotificationService) UseDispatcher(d jobs.Dispatcher) {
	s.dispatcher = d
}

// JobTypes lists the job types Handle understands.
func (s *NotificationService) JobTypes() []string {
	return []string{string(models.NotificationInvitation), string(models.NotificationMeetingLocked)}
}

// NotifyInvited sends the personal respond link to a newly invited participant.
func (s *NotificationService) NotifyInvited(ctx context.Context, meeting *models.Meeting, participant *models.Participant, respondURL string) {
	if participant.Email == nil || *participant.Email == "" {
		return
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", participant.DisplayName())
	fmt.Fprintf(&body, "You have been invited to share your availability for %q.\n", meeting.Title)
	fmt.Fprintf(&body, "Dates: %s to %s (%s)\n", meeting.DateRangeStart.Format(dateLayout), meeting.DateRangeEnd.Format(dateLayout), meeting.Timezone)
	fmt.Fprintf(&body, "Duration: %d minutes\n", meeting.DurationMinutes)
	if meeting.ResponseDeadline != nil {
		fmt.Fprintf(&body, "Please respond before %s.\n", meeting.ResponseDeadline.UTC().Format(time.RFC1123))
	}
	fmt.Fprintf(&body, "\nRespond here: %s\n\n%s", respondURL, s.siteName)

	s.publish(ctx, models.Notification{
		Kind:      models.NotificationInvitation,
		MeetingID: meeting.ID,
		Recipient: *participant.Email,
		Subject:   fmt.Sprintf("[%s] Availability requested: %s", s.siteName, meeting.Title),
		Body:      body.String(),
	})
}

// NotifyLocked tells every participant with an email the final meeting time.
func (s *NotificationService) NotifyLocked(ctx context.Context, meeting *models.Meeting, slot *models.SuggestedSlot, participants []models.Participant) {
	loc, err := time.LoadLocation(meeting.Timezone)
	if err != nil {
		loc = time.UTC
	}
	when := fmt.Sprintf("%s - %s (%s)",
		slot.StartTime.In(loc).Format("Mon 02 Jan 2006 15:04"),
		slot.EndTime.In(loc).Format("15:04"),
		meeting.Timezone,
	)
	for i := range participants {
		p := participants[i]
		if p.Email == nil || *p.Email == "" {
			continue
		}
		s.publish(ctx, models.Notification{
			Kind:      models.NotificationMeetingLocked,
			MeetingID: meeting.ID,
			Recipient: *p.Email,
			Subject:   fmt.Sprintf("[%s] Meeting time confirmed: %s", s.siteName, meeting.Title),
			Body:      fmt.Sprintf("Hi %s,\n\n%q will take place on %s.\n\n%s", p.DisplayName(), meeting.Title, when, s.siteName),
		})
	}
}

func (s *NotificationService) publish(ctx context.Context, n models.Notification) {
	if s.dispatcher == nil {
		err := s.sender.Send(ctx, n)
		s.metrics.RecordNotification(n.Kind, err)
		if err != nil {
			s.logger.Error("notification failed", zap.String("kind", string(n.Kind)), zap.String("meeting_id", n.MeetingID), zap.Error(err))
		}
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("encode notification", zap.Error(err))
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(n.Kind), Payload: payload}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		s.metrics.RecordNotification(n.Kind, err)
		s.logger.Error("enqueue notification", zap.String("kind", string(n.Kind)), zap.String("meeting_id", n.MeetingID), zap.Error(err))
	}
}

// Handle is the job handler for notification jobs.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	var n models.Notification
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		s.logger.Error("discarding malformed notification job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	err := s.sender.Send(ctx, n)
	s.metrics.RecordNotification(n.Kind, err)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Kind, n.Recipient, err)
	}
	s.logger.Debug("notification sent", zap.String("job_id", job.ID), zap.String("kind", string(n.Kind)))
	return nil
}
