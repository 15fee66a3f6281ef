package cron

import (
	"sync"
	"sync/atomic"

	rcron "github.com/robfig/cron/v3"
)

// ScheduleStatus is the lifecycle state of a Handle.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusRunning   ScheduleStatus = "running"
	ScheduleStatusIdle      ScheduleStatus = "idle"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCanceled  ScheduleStatus = "canceled"
	ScheduleStatusFailed    ScheduleStatus = "failed"
	ScheduleStatusStopped   ScheduleStatus = "stopped"
)

// statuses is indexed by the handle's atomic state.
var statuses = [...]ScheduleStatus{
	ScheduleStatusScheduled,
	ScheduleStatusRunning,
	ScheduleStatusIdle,
	ScheduleStatusCompleted,
	ScheduleStatusCanceled,
	ScheduleStatusFailed,
	ScheduleStatusStopped,
}

func stateOf(status ScheduleStatus) int32 {
	for i, s := range statuses {
		if s == status {
			return int32(i)
		}
	}
	return -1
}

// Handle controls one scheduled job.
//
// Cancel reports whether it took effect. For a one-shot job true means the
// job will never run; once it has started Cancel returns false.
type Handle interface {
	Cancel() bool
	Status() ScheduleStatus
	Err() error
	Done() <-chan struct{}
	ID() int64
}

type jobHandle struct {
	scheduler *Scheduler
	id        int64
	oneShot   bool
	entryID   rcron.EntryID // guarded by scheduler.mu

	state atomic.Int32
	done  chan struct{}
	once  sync.Once

	mu  sync.RWMutex
	err error
}

func newJobHandle(s *Scheduler, id int64, oneShot bool) *jobHandle {
	h := &jobHandle{
		scheduler: s,
		id:        id,
		oneShot:   oneShot,
		done:      make(chan struct{}),
	}
	h.state.Store(stateOf(ScheduleStatusScheduled))
	return h
}

func (h *jobHandle) Cancel() bool {
	if h == nil {
		return false
	}
	from := []ScheduleStatus{ScheduleStatusScheduled}
	if !h.oneShot {
		from = append(from, ScheduleStatusIdle, ScheduleStatusRunning)
	}
	if !h.transition(ScheduleStatusCanceled, from...) {
		return false
	}
	if h.scheduler != nil {
		h.scheduler.release(h.id)
	}
	h.closeDone()
	return true
}

func (h *jobHandle) Status() ScheduleStatus {
	if h == nil {
		return ScheduleStatusStopped
	}
	i := h.state.Load()
	if i < 0 || int(i) >= len(statuses) {
		return ScheduleStatusStopped
	}
	return statuses[i]
}

func (h *jobHandle) Err() error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *jobHandle) Done() <-chan struct{} {
	if h == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.done
}

func (h *jobHandle) ID() int64 {
	if h == nil {
		return 0
	}
	return h.id
}

// transition moves the handle to status if it is currently in one of from.
// Firing and cancellation both go through here, so only one of them wins.
func (h *jobHandle) transition(to ScheduleStatus, from ...ScheduleStatus) bool {
	next := stateOf(to)
	for _, f := range from {
		if h.state.CompareAndSwap(stateOf(f), next) {
			return true
		}
	}
	return false
}

func (h *jobHandle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *jobHandle) finish(status ScheduleStatus, err error) {
	h.setErr(err)
	h.state.Store(stateOf(status))
	h.closeDone()
}

func (h *jobHandle) closeDone() {
	h.once.Do(func() { close(h.done) })
}

func isTerminalStatus(status ScheduleStatus) bool {
	switch status {
	case ScheduleStatusCompleted, ScheduleStatusCanceled, ScheduleStatusFailed, ScheduleStatusStopped:
		return true
	default:
		return false
	}
}
