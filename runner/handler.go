package runner

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler runs a unit of work once per call with an optional timeout or
// deadline, recovering panics into errors.
type Handler struct {
	mu sync.Mutex

	name         string
	logger       Logger
	errorHandler func(error)

	runs           int
	successfulRuns int

	timeout  time.Duration
	deadline time.Time
}

// NewHandler constructs a Handler from options, applying defaults if unset.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		name: "runner",
		errorHandler: func(error) {},
	}
	for _, o := range opts {
		if o != nil {
			o(h)
		}
	}
	return h
}

// Run executes fn once. The returned error is also passed to the error handler.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := h.contextWithSettings(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = panicError(h.name, r)
		}
		h.finish(err)
	}()

	return fn(ctx)
}

// Stats reports how many runs finished and how many of them succeeded.
func (h *Handler) Stats() (runs, successes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.successfulRuns
}

// Timeout returns the configured per-run timeout.
func (h *Handler) Timeout() time.Duration {
	return h.timeout
}

func (h *Handler) finish(err error) {
	h.mu.Lock()
	h.runs++
	if err == nil {
		h.successfulRuns++
	}
	h.mu.Unlock()

	if err != nil {
		h.logError("%s failed: %v", h.name, err)
		h.errorHandler(err)
	}
}

func (h *Handler) logError(format string, args ...any) {
	if h.logger != nil {
		h.logger.Error(format, args...)
	}
}

func (h *Handler) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case h.timeout != 0 && !h.deadline.IsZero():
		ctx, cancelTimeout := context.WithTimeout(parent, h.timeout)
		ctxDeadline, cancelDeadline := context.WithDeadline(ctx, h.deadline)
		return ctxDeadline, func() {
			cancelDeadline()
			cancelTimeout()
		}
	case h.timeout != 0:
		return context.WithTimeout(parent, h.timeout)
	case !h.deadline.IsZero():
		return context.WithDeadline(parent, h.deadline)
	default:
		return parent, func() {}
	}
}

// IsTimeout reports whether err is the result of a run exceeding its time budget.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
