package cron

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	CodeInvalidSchedule  = "INVALID_SCHEDULE"
	CodeSchedulerStopped = "SCHEDULER_STOPPED"
)

// ErrSchedulerStopped is returned for any job scheduled after Stop.
var ErrSchedulerStopped = errors.New("scheduler stopped", errors.CategoryConflict).
	WithTextCode(CodeSchedulerStopped)

func invalidSchedule(job string, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var err *errors.Error
	if cause != nil {
		err = errors.Wrap(cause, errors.CategoryBadInput, msg)
	} else {
		err = errors.New(msg, errors.CategoryBadInput)
	}
	return err.WithTextCode(CodeInvalidSchedule).
		WithMetadata(map[string]any{"job": job})
}
