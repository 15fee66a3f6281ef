package cron

import (
	"fmt"
	"strings"
	"time"
)

type Option func(*Scheduler)

// WithLocation sets the time zone recurring expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithSeconds accepts a leading seconds field in cron expressions.
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

func WithLogger(logger Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithErrorHandler is called with every failed or panicking job.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = handler
	}
}

// cronLogger forwards robfig/cron logs. Its Info calls are per-tick noise.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: %s%s", msg, formatKeysAndValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: %s%s: %v", msg, formatKeysAndValues(keysAndValues), err)
}

// robfig/cron passes alternating key/value pairs, not format arguments.
func formatKeysAndValues(kv []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

// panicReporter hands panics recovered by robfig/cron to the error handler.
type panicReporter struct {
	handler func(error)
}

func (panicReporter) Info(string, ...any) {}

func (p panicReporter) Error(err error, msg string, _ ...any) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	p.handler(err)
}
