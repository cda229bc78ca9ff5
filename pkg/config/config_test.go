package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Scheduler.DefaultTimezone)
	assert.Equal(t, 10, cfg.Scheduler.SuggestionLimit)
	assert.Equal(t, 50.0, cfg.Scheduler.MinAvailabilityPct)
	assert.Equal(t, 3, cfg.Scheduler.RegenerateAttempts)
	assert.Equal(t, 30*24*time.Hour, cfg.Tokens.TTL)
	assert.Equal(t, "memory", cfg.Notifications.QueueBackend)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SCHEDULER_SUGGESTION_LIMIT", "25")
	t.Setenv("SCHEDULER_MIN_AVAILABILITY_PCT", "42.5")
	t.Setenv("NOTIFY_QUEUE_BACKEND", "ASYNQ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("PUBLIC_BASE_URL", "https://meet.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Scheduler.SuggestionLimit)
	assert.Equal(t, 42.5, cfg.Scheduler.MinAvailabilityPct)
	assert.Equal(t, "asynq", cfg.Notifications.QueueBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://meet.example", cfg.PublicBaseURL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
