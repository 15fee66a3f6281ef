package dispatcher

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
)

// DefaultTimeout bounds one downstream request.
const DefaultTimeout = 10 * time.Second

// Option defines the functional option signature.
type Option func(*Dispatcher)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithJournal(sink journal.Sink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.journal = sink
		}
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics.Normalize(m)
	}
}

// WithClock overrides the time source used for processed_at and durations.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithBreaker trips the circuit after maxFailures consecutive failures and
// keeps it open for openTimeout before probing again.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(d *Dispatcher) {
		if maxFailures == 0 {
			return
		}
		d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "downstream",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				d.logger.Warn("circuit %s changed from %s to %s", name, from.String(), to.String())
			},
		})
	}
}
