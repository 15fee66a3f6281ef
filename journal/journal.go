package journal

import (
	"sync"
	"time"

	"github.com/grupoevolution/perfect-webhook-system/cron"
)

// Category classifies an entry for the dashboard.
type Category string

const (
	CategoryInfo            Category = "info"
	CategorySuccess         Category = "success"
	CategoryError           Category = "error"
	CategoryWebhookReceived Category = "webhook_received"
	CategoryWebhookSent     Category = "webhook_sent"
	CategoryTimeout         Category = "timeout"
)

const (
	DefaultCapacity      = 1000
	DefaultRetention     = 24 * time.Hour
	DefaultSweepSchedule = "@every 1m"
)

// Entry is one diagnostic line.
type Entry struct {
	ID        uint64         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Category  Category       `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink accepts diagnostic entries. Implementations must not block.
type Sink interface {
	Record(category Category, message string, data map[string]any)
}

type discard struct{}

func (discard) Record(Category, string, map[string]any) {}

// Discard is a Sink that drops everything.
func Discard() Sink { return discard{} }

// Journal is a bounded, time-windowed ring of entries.
type Journal struct {
	mu        sync.RWMutex
	entries   []Entry
	head      int
	size      int
	nextID    uint64
	retention time.Duration
	now       func() time.Time
}

type Option func(*Journal)

// WithRetention drops entries older than d on Prune. Zero keeps them.
func WithRetention(d time.Duration) Option {
	return func(j *Journal) {
		if d >= 0 {
			j.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// New creates a journal holding at most capacity entries.
func New(capacity int, opts ...Option) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	j := &Journal{
		entries:   make([]Entry, capacity),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	return j
}

// Record appends an entry, overwriting the oldest one when full.
func (j *Journal) Record(category Category, message string, data map[string]any) {
	entry := Entry{
		Timestamp: j.now().UTC(),
		Category:  category,
		Message:   message,
		Data:      copyData(data),
	}

	j.mu.Lock()
	j.nextID++
	entry.ID = j.nextID
	idx := (j.head + j.size) % len(j.entries)
	if j.size == len(j.entries) {
		j.head = (j.head + 1) % len(j.entries)
	} else {
		j.size++
	}
	j.entries[idx] = entry
	j.mu.Unlock()
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Entries(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if limit <= 0 || limit > j.size {
		limit = j.size
	}
	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, j.at(j.size-1-i))
	}
	return out
}

// Since returns entries recorded at or after t, oldest first.
func (j *Journal) Since(t time.Time) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Entry
	for i := 0; i < j.size; i++ {
		e := j.at(i)
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out
}

// Prune drops entries older than the retention window and reports how many.
func (j *Journal) Prune(now time.Time) int {
	if j.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-j.retention)

	j.mu.Lock()
	defer j.mu.Unlock()
	dropped := 0
	for j.size > 0 && j.entries[j.head].Timestamp.Before(cutoff) {
		j.entries[j.head] = Entry{}
		j.head = (j.head + 1) % len(j.entries)
		j.size--
		dropped++
	}
	return dropped
}

// Len reports how many entries are held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

// Capacity reports the ring size.
func (j *Journal) Capacity() int {
	return len(j.entries)
}

// ScheduleSweep registers a recurring Prune on scheduler.
func (j *Journal) ScheduleSweep(scheduler *cron.Scheduler, expression string) (cron.Handle, error) {
	if expression == "" {
		expression = DefaultSweepSchedule
	}
	return scheduler.ScheduleCron(cron.JobOptions{
		Name:       "journal retention sweep",
		Expression: expression,
	}, func() {
		j.Prune(j.now())
	})
}

// at indexes logically, 0 being the oldest entry. Callers hold the lock.
func (j *Journal) at(i int) Entry {
	return j.entries[(j.head+i)%len(j.entries)]
}

func copyData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
