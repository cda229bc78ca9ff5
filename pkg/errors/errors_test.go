package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Clone(ErrNotFound, "meeting not found"))

	appErr := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "meeting not found", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(sql.ErrConnDone, ErrStorage.Code, ErrStorage.Status, "failed to list participants")
	assert.True(t, Is(err, ErrStorage))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(nil, ErrStorage))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrInvalidMeetingConfig, "duration exceeds work hours window")
	assert.Equal(t, "invalid meeting configuration", ErrInvalidMeetingConfig.Message)
	assert.Equal(t, "duration exceeds work hours window", clone.Error())
}
