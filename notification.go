package relay

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goliatone/go-errors"
)

// Inbound field names used by the Perfect Pay webhook.
const (
	FieldOrderID      = "code"
	FieldStatus       = "sale_status_enum_key"
	FieldCustomer     = "customer"
	FieldCustomerName = "full_name"
	FieldAmount       = "sale_amount"

	FieldEventType   = "event_type"
	FieldProcessedAt = "processed_at"
)

// Notification is an inbound payment-status notification kept verbatim.
// Numbers are held as json.Number so amounts round-trip unchanged.
type Notification map[string]any

// DecodeNotification reads one JSON object from r.
func DecodeNotification(r io.Reader) (Notification, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var n Notification
	if err := dec.Decode(&n); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "notification is not a JSON object").
			WithTextCode(CodeMalformedNotification)
	}
	if dec.More() {
		return nil, errors.New("notification has trailing data after the JSON object", errors.CategoryBadInput).
			WithTextCode(CodeMalformedNotification)
	}
	if n == nil {
		return nil, errors.New("notification body is null", errors.CategoryBadInput).
			WithTextCode(CodeMalformedNotification)
	}
	return n, nil
}

// ParseNotification decodes raw JSON bytes.
func ParseNotification(raw []byte) (Notification, error) {
	return DecodeNotification(bytes.NewReader(raw))
}

// OrderID returns the correlation key, or "" when absent.
func (n Notification) OrderID() string {
	return scalarString(n[FieldOrderID])
}

// Status returns the status code exactly as sent, or "" when absent.
func (n Notification) Status() string {
	if s, ok := n[FieldStatus].(string); ok {
		return s
	}
	return scalarString(n[FieldStatus])
}

// CustomerName is display-only.
func (n Notification) CustomerName() string {
	customer, ok := n[FieldCustomer].(map[string]any)
	if !ok {
		return ""
	}
	return scalarString(customer[FieldCustomerName])
}

// Amount is display-only and returned as received.
func (n Notification) Amount() any {
	return n[FieldAmount]
}

// Clone returns a shallow copy; nested values are shared and must not be mutated.
func (n Notification) Clone() Notification {
	if n == nil {
		return nil
	}
	out := make(Notification, len(n)+2)
	for k, v := range n {
		out[k] = v
	}
	return out
}

// ProcessedAtLayout is ISO-8601 UTC with millisecond precision.
const ProcessedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Outbound returns the downstream payload: every inbound field plus
// event_type and processed_at. Inbound fields with those names are replaced.
func (n Notification) Outbound(kind EventKind, at time.Time) Notification {
	out := n.Clone()
	if out == nil {
		out = make(Notification, 2)
	}
	out[FieldEventType] = string(kind)
	out[FieldProcessedAt] = at.UTC().Format(ProcessedAtLayout)
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool, float64, int, int64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
