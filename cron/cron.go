package cron

import (
	"context"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/grupoevolution/perfect-webhook-system/runner"
)

// Logger receives scheduler diagnostics. robfig/cron chatter goes to Debug.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// JobOptions configures one scheduled job.
type JobOptions struct {
	// Name labels the job in logs and errors.
	Name string
	// Expression is required by ScheduleCron and ignored by one-shot jobs.
	Expression string
	// Timeout bounds a single execution of the job.
	Timeout  time.Duration
	Deadline time.Time
}

func (o JobOptions) name() string {
	if o.Name == "" {
		return "scheduled job"
	}
	return o.Name
}

// Scheduler runs one-shot delayed jobs on their own timers and recurring jobs
// on robfig/cron. Recurring jobs only run between Start and Stop; one-shot
// jobs run as soon as they are due.
type Scheduler struct {
	cron         *rcron.Cron
	location     *time.Location
	seconds      bool
	logger       Logger
	errorHandler func(error)

	// jobs run under base; Stop cancels it.
	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	stopped bool
	lastID  int64
	live    map[int64]*jobHandle
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		live:     make(map[int64]*jobHandle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	// Failures are already logged by the runner.
	if s.errorHandler == nil {
		s.errorHandler = func(error) {}
	}

	s.base, s.cancelBase = context.WithCancel(context.Background())
	s.cron = rcron.New(s.cronOptions()...)
	return s
}

// ScheduleCron registers a recurring job.
func (s *Scheduler) ScheduleCron(opts JobOptions, handler any) (Handle, error) {
	if opts.Expression == "" {
		return nil, invalidSchedule(opts.name(), nil, "cron expression cannot be empty")
	}
	run, err := s.runnable(opts, handler)
	if err != nil {
		return nil, err
	}
	h, err := s.register(false)
	if err != nil {
		return nil, err
	}

	entryID, err := s.cron.AddFunc(opts.Expression, func() {
		// Idle between ticks; a canceled or stopped handle never runs again.
		if !h.transition(ScheduleStatusRunning, ScheduleStatusScheduled, ScheduleStatusIdle) {
			return
		}
		h.setErr(run())
		h.transition(ScheduleStatusIdle, ScheduleStatusRunning)
	})
	if err != nil {
		s.release(h.id)
		return nil, invalidSchedule(opts.name(), err, "invalid cron expression %q", opts.Expression)
	}

	s.mu.Lock()
	h.entryID = entryID
	s.mu.Unlock()
	if isTerminalStatus(h.Status()) {
		s.cron.Remove(entryID)
	}
	return h, nil
}

// ScheduleAfter runs handler once after delay. Negative delays run immediately.
func (s *Scheduler) ScheduleAfter(delay time.Duration, opts JobOptions, handler any) (Handle, error) {
	return s.ScheduleAt(time.Now().Add(max(delay, 0)), opts, handler)
}

// ScheduleAt runs handler once at the given time. Firing and Cancel race
// through a compare-and-set on the handle, so the job runs at most once and
// never after a successful Cancel.
func (s *Scheduler) ScheduleAt(at time.Time, opts JobOptions, handler any) (Handle, error) {
	run, err := s.runnable(opts, handler)
	if err != nil {
		return nil, err
	}
	h, err := s.register(true)
	if err != nil {
		return nil, err
	}
	go s.fireAt(at, h, run)
	return h, nil
}

func (s *Scheduler) fireAt(at time.Time, h *jobHandle, run func() error) {
	timer := time.NewTimer(max(time.Until(at), 0))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-h.Done():
		return
	}

	if !h.transition(ScheduleStatusRunning, ScheduleStatusScheduled) {
		return
	}
	if err := run(); err != nil {
		h.finish(ScheduleStatusFailed, err)
	} else {
		h.finish(ScheduleStatusCompleted, nil)
	}
	s.release(h.id)
}

// Pending counts handles that have not reached a terminal state.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Start begins ticking recurring jobs.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop refuses new jobs and marks every live handle stopped. Jobs already
// running finish, with their context canceled. Stop waits for them until ctx
// is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	running := s.cron.Stop()

	s.mu.Lock()
	s.stopped = true
	live := s.live
	s.live = make(map[int64]*jobHandle)
	s.mu.Unlock()

	for _, h := range live {
		if h.entryID > 0 {
			s.cron.Remove(h.entryID)
		}
		if h.transition(ScheduleStatusStopped, ScheduleStatusScheduled, ScheduleStatusIdle) {
			h.closeDone()
		}
	}
	s.cancelBase()

	if ctx == nil {
		return nil
	}
	select {
	case <-running.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) register(oneShot bool) (*jobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrSchedulerStopped
	}
	s.lastID++
	h := newJobHandle(s, s.lastID, oneShot)
	s.live[h.id] = h
	return h, nil
}

// release forgets a handle and unregisters its cron entry, if any.
func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	h := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()

	if h != nil && h.entryID > 0 {
		s.cron.Remove(h.entryID)
	}
}

// runnable wraps handler in a runner.Handler so every execution gets the job
// timeout, panic recovery and error reporting.
func (s *Scheduler) runnable(opts JobOptions, handler any) (func() error, error) {
	var fn func(context.Context) error
	switch h := handler.(type) {
	case func():
		fn = func(context.Context) error {
			h()
			return nil
		}
	case func() error:
		fn = func(context.Context) error { return h() }
	case func(context.Context) error:
		fn = h
	default:
		return nil, invalidSchedule(opts.name(), nil, "unsupported handler type %T", handler)
	}

	r := runner.NewHandler(
		runner.WithName(opts.name()),
		runner.WithTimeout(opts.Timeout),
		runner.WithDeadline(opts.Deadline),
		runner.WithErrorHandler(s.errorHandler),
		runner.WithLogger(s.runnerLogger()),
	)
	return func() error {
		return r.Run(s.base, fn)
	}, nil
}

func (s *Scheduler) runnerLogger() runner.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger
}

func (s *Scheduler) cronOptions() []rcron.Option {
	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if s.seconds {
		fields |= rcron.Second
	}

	var logger rcron.Logger = rcron.DiscardLogger
	if s.logger != nil {
		logger = cronLogger{s.logger}
	}

	opts := []rcron.Option{
		rcron.WithParser(rcron.NewParser(fields)),
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(panicReporter{s.errorHandler})),
	}
	if s.location != nil {
		opts = append(opts, rcron.WithLocation(s.location))
	}
	return opts
}
