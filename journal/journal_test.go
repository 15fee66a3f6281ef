package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grupoevolution/perfect-webhook-system/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRecordAndEntriesNewestFirst(t *testing.T) {
	j := New(10)
	j.Record(CategoryWebhookReceived, "received A1", map[string]any{"code": "A1"})
	j.Record(CategoryWebhookSent, "sent A1", nil)

	entries := j.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "sent A1", entries[0].Message)
	assert.Equal(t, CategoryWebhookReceived, entries[1].Category)
	assert.Equal(t, "A1", entries[1].Data["code"])
	assert.Greater(t, entries[0].ID, entries[1].ID)

	limited := j.Entries(1)
	require.Len(t, limited, 1)
	assert.Equal(t, "sent A1", limited[0].Message)
}

func TestRingOverwritesOldest(t *testing.T) {
	j := New(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		j.Record(CategoryInfo, msg, nil)
	}

	assert.Equal(t, 3, j.Len())
	entries := j.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{entries[0].Message, entries[1].Message, entries[2].Message})
}

func TestRecordCopiesData(t *testing.T) {
	j := New(2)
	data := map[string]any{"code": "A1"}
	j.Record(CategoryInfo, "x", data)
	data["code"] = "changed"

	assert.Equal(t, "A1", j.Entries(1)[0].Data["code"])
}

func TestPruneDropsExpiredEntries(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	j := New(10, WithRetention(time.Hour), WithClock(c.Now))

	j.Record(CategoryInfo, "old", nil)
	c.Advance(30 * time.Minute)
	j.Record(CategoryInfo, "mid", nil)
	c.Advance(45 * time.Minute)
	j.Record(CategoryInfo, "new", nil)

	dropped := j.Prune(c.Now())
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, j.Len())

	since := j.Since(c.Now().Add(-10 * time.Minute))
	require.Len(t, since, 1)
	assert.Equal(t, "new", since[0].Message)
}

func TestPruneWithoutRetentionKeepsEntries(t *testing.T) {
	j := New(4, WithRetention(0))
	j.Record(CategoryInfo, "a", nil)
	assert.Equal(t, 0, j.Prune(time.Now().Add(48*time.Hour)))
	assert.Equal(t, 1, j.Len())
}

func TestScheduleSweepRegistersRecurringJob(t *testing.T) {
	scheduler := cron.NewScheduler(cron.WithSeconds())
	c := &clock{now: time.Now()}
	j := New(10, WithRetention(time.Minute), WithClock(c.Now))

	j.Record(CategoryInfo, "stale", nil)
	c.Advance(2 * time.Minute)

	handle, err := j.ScheduleSweep(scheduler, "@every 1s")
	require.NoError(t, err)
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop(context.Background())

	require.Eventually(t, func() bool { return j.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, handle.Cancel())
}

func TestConcurrentRecord(t *testing.T) {
	j := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				j.Record(CategoryInfo, "tick", nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, j.Len())
	assert.Equal(t, uint64(200), j.Entries(1)[0].ID)
}
