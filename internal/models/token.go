package models

import "github.com/golang-jwt/jwt/v5"

// RespondClaims authorise one participant to submit availability for one meeting.
// The participant id is carried in the subject.
type RespondClaims struct {
	MeetingID string `json:"mid"`
	jwt.RegisteredClaims
}
