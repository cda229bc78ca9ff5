package service

import (
	"errors"

	appErrors "github.com/timeweave/meeting-scheduler-api/pkg/errors"
)

// storageError passes typed errors through and marks anything else as a data store failure.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
}
