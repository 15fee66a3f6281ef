package relay

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	CodeMalformedNotification = "MALFORMED_NOTIFICATION"
	CodeMissingOrderID        = "MISSING_ORDER_ID"
	CodeRelayStopped          = "RELAY_STOPPED"
)

var (
	// ErrMissingOrderID marks a notification that cannot be correlated.
	ErrMissingOrderID = errors.New("notification has no order identifier", errors.CategoryValidation).
				WithTextCode(CodeMissingOrderID)
	// ErrRelayStopped is reported once the relay stopped accepting notifications.
	ErrRelayStopped = errors.New("relay is not accepting notifications", errors.CategoryConflict).
			WithTextCode(CodeRelayStopped)
)

// NewError clones base and attaches a message, source error and metadata.
func NewError(base *errors.Error, message string, source error, metadata map[string]any) *errors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of a go-errors payload in err's chain.
func ErrorCode(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}
