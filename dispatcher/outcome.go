package dispatcher

import (
	"time"

	"github.com/goliatone/go-errors"

	relay "github.com/grupoevolution/perfect-webhook-system"
)

const (
	CodeUnconfigured  = "DOWNSTREAM_UNCONFIGURED"
	CodeRequestFailed = "DOWNSTREAM_REQUEST_FAILED"
	CodeTimeout       = "DOWNSTREAM_TIMEOUT"
	CodeRejected      = "DOWNSTREAM_REJECTED"
	CodeCircuitOpen   = "DOWNSTREAM_CIRCUIT_OPEN"
	CodeEncode        = "PAYLOAD_ENCODE_FAILED"
)

var (
	ErrUnconfigured = errors.New("downstream url is not configured", errors.CategoryBadInput).
			WithTextCode(CodeUnconfigured)
	ErrRequestFailed = errors.New("downstream request failed", errors.CategoryExternal).
				WithTextCode(CodeRequestFailed)
	ErrTimeout = errors.New("downstream request timed out", errors.CategoryExternal).
			WithTextCode(CodeTimeout)
	ErrRejected = errors.New("downstream rejected the event", errors.CategoryExternal).
			WithTextCode(CodeRejected)
	ErrCircuitOpen = errors.New("downstream circuit is open", errors.CategoryExternal).
			WithTextCode(CodeCircuitOpen)
	ErrEncode = errors.New("payload could not be encoded", errors.CategoryBadInput).
			WithTextCode(CodeEncode)
)

// Outcome describes one dispatch. Success and Err are mutually exclusive.
type Outcome struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code,omitempty"`
	Err        error           `json:"-"`
	EventKind  relay.EventKind `json:"event_type"`
	OrderID    string          `json:"code"`
	DispatchID string          `json:"dispatch_id"`
	Duration   time.Duration   `json:"duration"`
	// Attempted is false when no request left the process.
	Attempted bool `json:"attempted"`
}

// Error returns the failure text, "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func newError(base *errors.Error, message string, source error, out *Outcome) error {
	return relay.NewError(base, message, source, map[string]any{
		"code":        out.OrderID,
		"event_type":  string(out.EventKind),
		"dispatch_id": out.DispatchID,
	})
}
