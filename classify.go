package relay

// Intent is the closed set of things a notification can ask the relay to do.
type Intent int

const (
	IntentUnrecognized Intent = iota
	IntentApproved
	IntentAwaitingPayment
)

// Status codes sent by the payment provider.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
)

func (i Intent) String() string {
	switch i {
	case IntentApproved:
		return "approved"
	case IntentAwaitingPayment:
		return "awaiting_payment"
	default:
		return "unrecognized"
	}
}

// Classify maps a status code to an Intent. Matching is exact; unknown codes,
// including other casings, are IntentUnrecognized.
func Classify(status string) Intent {
	switch status {
	case StatusApproved:
		return IntentApproved
	case StatusPending:
		return IntentAwaitingPayment
	default:
		return IntentUnrecognized
	}
}

// EventKind is the normalized event forwarded downstream.
type EventKind string

const (
	EventApproved   EventKind = "approved"
	EventPixTimeout EventKind = "pix_timeout"
)

func (k EventKind) String() string {
	return string(k)
}
