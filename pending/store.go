package pending

import (
	"sort"
	"strings"
	"sync"
	"time"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/cron"
)

// Record is an order awaiting payment together with its escalation handle.
type Record struct {
	OrderID   string
	Payload   relay.Notification
	Handle    cron.Handle
	CreatedAt time.Time
	ExpiresAt time.Time
}

// HandleID returns the id of the record's escalation handle, 0 when unset.
func (r *Record) HandleID() int64 {
	if r == nil || r.Handle == nil {
		return 0
	}
	return r.Handle.ID()
}

func (r *Record) cancel() {
	if r != nil && r.Handle != nil {
		r.Handle.Cancel()
	}
}

// Pending is the read-only view of a record used for monitoring.
type Pending struct {
	OrderID      string    `json:"code"`
	CustomerName string    `json:"customer_name"`
	Amount       any       `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
	RemainingMS  int64     `json:"remaining_time"`
}

// Store holds at most one Record per order id.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	locks   *keyLocker
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		locks:   newKeyLocker(),
	}
}

// Lock serializes work on one order id and returns the unlock func.
// Unrelated order ids never contend.
func (s *Store) Lock(orderID string) func() {
	return s.locks.Lock(orderID)
}

// Get returns the current record for orderID.
func (s *Store) Get(orderID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	return rec, ok
}

// Upsert stores rec, canceling the escalation of any record it replaces.
func (s *Store) Upsert(orderID string, rec *Record) {
	if rec == nil {
		return
	}
	rec.OrderID = orderID

	s.mu.Lock()
	prev := s.records[orderID]
	s.records[orderID] = rec
	s.mu.Unlock()

	if prev != nil && prev != rec {
		prev.cancel()
	}
}

// Remove deletes the record for orderID. Absent keys are a no-op.
func (s *Store) Remove(orderID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if ok {
		delete(s.records, orderID)
	}
	return rec, ok
}

// RemoveIfCurrent deletes the record only while it still owns handleID.
func (s *Store) RemoveIfCurrent(orderID string, handleID int64) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok || rec.HandleID() != handleID {
		return nil, false
	}
	delete(s.records, orderID)
	return rec, true
}

// Len reports how many orders are pending.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot lists pending orders oldest first.
func (s *Store) Snapshot(now time.Time) []Pending {
	s.mu.RLock()
	out := make([]Pending, 0, len(s.records))
	for id, rec := range s.records {
		remaining := rec.ExpiresAt.Sub(now).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Pending{
			OrderID:      id,
			CustomerName: rec.Payload.CustomerName(),
			Amount:       rec.Payload.Amount(),
			CreatedAt:    rec.CreatedAt,
			RemainingMS:  remaining,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Drain removes every record and cancels its escalation.
func (s *Store) Drain() []*Record {
	s.mu.Lock()
	out := make([]*Record, 0, len(s.records))
	for id, rec := range s.records {
		out = append(out, rec)
		delete(s.records, id)
	}
	s.mu.Unlock()

	for _, rec := range out {
		rec.cancel()
	}
	return out
}

type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLockRef
}

type keyLockRef struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{
		locks: make(map[string]*keyLockRef),
	}
}

func (l *keyLocker) Lock(key string) func() {
	if l == nil {
		return func() {}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return func() {}
	}
	l.mu.Lock()
	ref, ok := l.locks[key]
	if !ok || ref == nil {
		ref = &keyLockRef{}
		l.locks[key] = ref
	}
	ref.refs++
	l.mu.Unlock()

	ref.mu.Lock()
	return func() {
		ref.mu.Unlock()
		l.mu.Lock()
		ref.refs--
		if ref.refs <= 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
