// Package router mounts the HTTP handlers on a gin engine.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/timeweave/meeting-scheduler-api/internal/handler"
)

// Router groups the API handlers and their route guards.
type Router struct {
	Meetings     *handler.MeetingHandler
	Participants *handler.ParticipantHandler
	Suggestions  *handler.SuggestionHandler
	Metrics      *handler.MetricsHandler
	RespondToken gin.HandlerFunc
}

// Setup registers probe endpoints at the root and the API under prefix.
func (r *Router) Setup(e *gin.Engine, prefix string) {
	e.GET("/health", r.Metrics.Health)
	e.GET("/ready", r.Metrics.Ready)
	e.GET("/metrics", r.Metrics.Prometheus)

	v1 := e.Group(prefix)
	v1.GET("/metrics/summary", r.Metrics.Summary)

	meetings := v1.Group("/meetings")
	meetings.POST("", r.Meetings.Create)
	meetings.GET("", r.Meetings.List)
	meetings.GET("/:id", r.Meetings.Get)
	meetings.PUT("/:id", r.Meetings.Update)
	meetings.PATCH("/:id/status", r.Meetings.ChangeStatus)
	meetings.DELETE("/:id", r.Meetings.Delete)

	meetings.POST("/:id/join", r.Participants.Join)
	meetings.POST("/:id/participants", r.Participants.Invite)
	meetings.GET("/:id/participants", r.Participants.List)
	meetings.DELETE("/:id/participants/:participantId", r.Participants.Remove)

	respond := meetings.Group("/:id/participants/:participantId", r.RespondToken)
	respond.GET("", r.Participants.Get)
	respond.PUT("/availability", r.Participants.SubmitAvailability)

	meetings.POST("/:id/suggestions/generate", r.Suggestions.Generate)
	meetings.GET("/:id/suggestions", r.Suggestions.List)
	meetings.GET("/:id/suggestions/top", r.Suggestions.Top)
	meetings.GET("/:id/suggestions/export", r.Suggestions.Export)
	meetings.GET("/:id/heatmap", r.Suggestions.Heatmap)
	meetings.POST("/:id/lock", r.Suggestions.Lock)
}
