package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

// TokenConfig configures respond link signing.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// TokenService issues and validates participant respond tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService constructs a token service.
func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return &TokenService{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Issue signs a token for participantID within meetingID.
func (s *TokenService) Issue(meetingID, participantID string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.cfg.TTL)
	claims := &models.RespondClaims{
		MeetingID: meetingID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   participantID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign respond token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses the token and checks that it was issued for meetingID.
func (s *TokenService) Validate(tokenString, meetingID string) (*models.RespondClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.RespondClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid respond token")
	}

	claims, ok := token.Claims.(*models.RespondClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid respond token claims")
	}
	if claims.MeetingID != meetingID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "respond token belongs to another meeting")
	}
	return claims, nil
}
