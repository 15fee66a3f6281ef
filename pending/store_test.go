package pending

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/cron"
)

type fakeHandle struct {
	id       int64
	canceled atomic.Int32
}

func (h *fakeHandle) Cancel() bool { return h.canceled.Add(1) == 1 }
func (h *fakeHandle) Status() cron.ScheduleStatus { return cron.ScheduleStatusScheduled }
func (h *fakeHandle) Err() error { return nil }
func (h *fakeHandle) Done() <-chan struct{} { return make(chan struct{}) }
func (h *fakeHandle) ID() int64 { return h.id }

func record(id int64, created time.Time) (*Record, *fakeHandle) {
	h := &fakeHandle{id: id}
	return &Record{
		Payload: relay.Notification{
			relay.FieldOrderID:  "A1",
			relay.FieldCustomer: map[string]any{relay.FieldCustomerName: "Ana"},
			relay.FieldAmount:   "97.00",
		},
		Handle:    h,
		CreatedAt: created,
		ExpiresAt: created.Add(7 * time.Minute),
	}, h
}

func TestUpsertReplacesAndCancelsPrevious(t *testing.T) {
	store := NewStore()
	now := time.Now()

	first, firstHandle := record(1, now)
	second, secondHandle := record(2, now)

	store.Upsert("A1", first)
	store.Upsert("A1", second)

	if store.Len() != 1 {
		t.Fatalf("expected one record per order, got %d", store.Len())
	}
	if firstHandle.canceled.Load() != 1 {
		t.Fatalf("expected replaced handle to be canceled once, got %d", firstHandle.canceled.Load())
	}
	if secondHandle.canceled.Load() != 0 {
		t.Fatal("expected current handle to stay live")
	}
	got, ok := store.Get("A1")
	if !ok || got.HandleID() != 2 {
		t.Fatalf("expected record with handle 2, got %+v", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := NewStore()
	rec, _ := record(1, time.Now())
	store.Upsert("A1", rec)

	if _, ok := store.Remove("A1"); !ok {
		t.Fatal("expected first remove to find the record")
	}
	if _, ok := store.Remove("A1"); ok {
		t.Fatal("expected second remove to be a no-op")
	}
	if _, ok := store.Remove("missing"); ok {
		t.Fatal("expected remove of unknown order to be a no-op")
	}
}

func TestRemoveIfCurrentRequiresOwningHandle(t *testing.T) {
	store := NewStore()
	now := time.Now()
	old, _ := record(1, now)
	current, _ := record(2, now)
	store.Upsert("A1", old)
	store.Upsert("A1", current)

	if _, ok := store.RemoveIfCurrent("A1", 1); ok {
		t.Fatal("expected stale handle to be refused")
	}
	if store.Len() != 1 {
		t.Fatal("expected record to survive a stale removal")
	}
	if _, ok := store.RemoveIfCurrent("A1", 2); !ok {
		t.Fatal("expected owning handle to remove the record")
	}
	if store.Len() != 0 {
		t.Fatal("expected store to be empty")
	}
}

func TestSnapshotOrdersAndClampsRemaining(t *testing.T) {
	store := NewStore()
	now := time.Now()

	older, _ := record(1, now.Add(-10*time.Minute))
	newer, _ := record(2, now.Add(-time.Minute))
	store.Upsert("OLD", older)
	store.Upsert("NEW", newer)

	snap := store.Snapshot(now)
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap[0].OrderID != "OLD" || snap[1].OrderID != "NEW" {
		t.Fatalf("expected oldest first, got %s, %s", snap[0].OrderID, snap[1].OrderID)
	}
	if snap[0].RemainingMS != 0 {
		t.Fatalf("expected expired record to clamp to 0, got %d", snap[0].RemainingMS)
	}
	if want := (6 * time.Minute).Milliseconds(); snap[1].RemainingMS != want {
		t.Fatalf("expected %d remaining, got %d", want, snap[1].RemainingMS)
	}
	if snap[1].CustomerName != "Ana" || snap[1].Amount != "97.00" {
		t.Fatalf("unexpected display fields: %+v", snap[1])
	}
}

func TestDrainCancelsEverything(t *testing.T) {
	store := NewStore()
	a, ha := record(1, time.Now())
	b, hb := record(2, time.Now())
	store.Upsert("A", a)
	store.Upsert("B", b)

	drained := store.Drain()
	if len(drained) != 2 || store.Len() != 0 {
		t.Fatalf("expected 2 drained and empty store, got %d / %d", len(drained), store.Len())
	}
	if ha.canceled.Load() != 1 || hb.canceled.Load() != 1 {
		t.Fatal("expected drained handles to be canceled")
	}
}

func TestLockSerializesSameKeyOnly(t *testing.T) {
	store := NewStore()

	unlock := store.Lock("A1")

	otherDone := make(chan struct{})
	go func() {
		release := store.Lock("B2")
		release()
		close(otherDone)
	}()
	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatal("expected unrelated order to proceed while A1 is locked")
	}

	sameDone := make(chan struct{})
	go func() {
		release := store.Lock("A1")
		release()
		close(sameDone)
	}()
	select {
	case <-sameDone:
		t.Fatal("expected same order to block while locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-sameDone:
	case <-time.After(time.Second):
		t.Fatal("expected waiter to proceed after unlock")
	}
}

func TestLockReleasesUnusedKeys(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	var counter int

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Lock("A1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected serialized increments to reach 100, got %d", counter)
	}
	if size := store.locks.size(); size != 0 {
		t.Fatalf("expected lock table to be empty, got %d", size)
	}
}
