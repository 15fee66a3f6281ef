package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
)

type Option func(*Server)

func WithTarget(t Target) Option {
	return func(s *Server) {
		s.target = t
	}
}

func WithStats(src StatsSource) Option {
	return func(s *Server) {
		s.stats = src
	}
}

// WithJournal serves /logs from j and records configuration changes into it.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) {
		if j != nil {
			s.journal = j
			s.sink = j
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics.Normalize(m)
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeouts sets the http.Server read and write timeouts and the grace
// period for shutdown. Zero values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}
