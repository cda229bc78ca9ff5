package models

// NotificationKind identifies the message template.
type NotificationKind string

const (
	NotificationInvitation    NotificationKind = "meeting_invitation"
	NotificationMeetingLocked NotificationKind = "meeting_locked"
)

// Notification is a message addressed to a single recipient.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	MeetingID string           `json:"meeting_id"`
	Recipient string           `json:"recipient"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
}
