package correlator

import (
	"time"

	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
	"github.com/grupoevolution/perfect-webhook-system/pending"
)

// DefaultDelay is the grace period a pending order waits for approval.
const DefaultDelay = 7 * time.Minute

type Option func(*Controller)

func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithJournal(sink journal.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.journal = sink
		}
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = metrics.Normalize(m)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStore replaces the pending store, mainly for tests.
func WithStore(store *pending.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}
