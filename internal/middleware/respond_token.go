package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
	"github.com/timeweave/meeting-scheduler-api/pkg/response"
)

// ContextRespondClaimsKey is the gin context key storing respond token claims.
const ContextRespondClaimsKey = "respondClaims"

// RespondTokenHeader carries the participant respond token.
const RespondTokenHeader = "X-Respond-Token"

type respondTokenValidator interface {
	Validate(token, meetingID string) (*models.RespondClaims, error)
}

// RespondToken guards participant routes. The token is read from the X-Respond-Token header,
// a Bearer Authorization header or the token query parameter, and must be issued for the
// :id meeting and the :participantId participant.
func RespondToken(tokens respondTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractRespondToken(c)
		if raw == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "respond token required"))
			return
		}

		claims, err := tokens.Validate(raw, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		if pid := c.Param("participantId"); pid != "" && claims.Subject != pid {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "respond token belongs to another participant"))
			return
		}

		c.Set(ContextRespondClaimsKey, claims)
		c.Next()
	}
}

func extractRespondToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(RespondTokenHeader)); token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// RespondClaims returns the claims stored by RespondToken.
func RespondClaims(c *gin.Context) (*models.RespondClaims, bool) {
	v, ok := c.Get(ContextRespondClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*models.RespondClaims)
	return claims, ok
}
