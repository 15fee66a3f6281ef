package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestHandler_NoError(t *testing.T) {
	h := NewHandler()

	cf := countingFunc{failUntil: 0}
	if err := h.Run(context.Background(), cf.fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cf.calls != 1 {
		t.Errorf("expected calls=1, got %d", cf.calls)
	}
	runs, ok := h.Stats()
	if runs != 1 || ok != 1 {
		t.Errorf("expected 1 run / 1 success, got %d / %d", runs, ok)
	}
}

func TestHandler_ErrorIsReturnedAndNotRetried(t *testing.T) {
	var handled []error
	h := NewHandler(WithErrorHandler(func(err error) { handled = append(handled, err) }))

	cf := countingFunc{failUntil: 5}
	err := h.Run(context.Background(), cf.fn)
	if err == nil {
		t.Fatal("expected error")
	}
	if cf.calls != 1 {
		t.Errorf("expected a single attempt, got %d", cf.calls)
	}
	if len(handled) != 1 {
		t.Errorf("expected error handler to see 1 error, got %d", len(handled))
	}
	if _, ok := h.Stats(); ok != 0 {
		t.Errorf("expected 0 successful runs, got %d", ok)
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(
		WithTimeout(50*time.Millisecond),
		WithErrorHandler(nil),
	)

	start := time.Now()
	err := h.Run(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err() // "context deadline exceeded"
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	})
	elapsed := time.Since(start)

	if elapsed >= 500*time.Millisecond {
		t.Error("expected function to time out quickly, but took too long")
	}
	if !IsTimeout(err) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if h.Timeout() != 50*time.Millisecond {
		t.Errorf("unexpected timeout %s", h.Timeout())
	}
}

func TestHandler_Deadline(t *testing.T) {
	deadline := time.Now().Add(50 * time.Millisecond)
	h := NewHandler(WithDeadline(deadline), WithErrorHandler(nil))

	start := time.Now()
	_ = h.Run(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	})

	if time.Since(start) >= 500*time.Millisecond {
		t.Error("expected function to stop at deadline, but took too long")
	}
}

func TestHandler_PanicBecomesError(t *testing.T) {
	ml := &mockLogger{}
	h := NewHandler(WithName("escalation"), WithLogger(ml), WithErrorHandler(nil))

	err := h.Run(context.Background(), func(context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}

	var ge *goerrors.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected go-errors payload, got %T", err)
	}
	if ge.TextCode != CodePanicRecovered {
		t.Fatalf("expected %s, got %s", CodePanicRecovered, ge.TextCode)
	}
	if !strings.Contains(err.Error(), "escalation") {
		t.Fatalf("expected handler name in error, got %v", err)
	}
	if len(ml.messages()) == 0 {
		t.Error("expected error log, got none")
	}
}

func TestHandler_Concurrency(t *testing.T) {
	h := NewHandler()
	wg := sync.WaitGroup{}
	const goroutines = 10

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Run(context.Background(), noErrorFunc)
		}()
	}
	wg.Wait()

	runs, ok := h.Stats()
	if runs != goroutines || ok != goroutines {
		t.Errorf("expected %d runs and successes, got %d / %d", goroutines, runs, ok)
	}
}

type mockLogger struct {
	mu            sync.Mutex
	errorMessages []string
}

func (m *mockLogger) Info(msg string, args ...any) {}

func (m *mockLogger) Error(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMessages = append(m.errorMessages, fmt.Sprintf(msg, args...))
}

func (m *mockLogger) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errorMessages...)
}

func noErrorFunc(_ context.Context) error {
	return nil
}

type countingFunc struct {
	calls     int
	failUntil int // fail this many times, then succeed
}

func (cf *countingFunc) fn(_ context.Context) error {
	cf.calls++
	if cf.calls <= cf.failUntil {
		return fmt.Errorf("forced error attempt %d", cf.calls)
	}
	return nil
}
