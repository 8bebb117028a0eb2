package syncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTallyCompletesAtZero(t *testing.T) {
	ta := NewTally(3)

	done := make(chan error, 1)
	go func() { done <- ta.Wait(context.Background(), 5*time.Second) }()

	if rem := ta.Done(); rem != 2 {
		t.Fatalf("Done: remaining=%d, want 2", rem)
	}
	select {
	case <-done:
		t.Fatal("Wait returned before the count reached zero")
	case <-time.After(20 * time.Millisecond):
	}

	ta.Done()
	if rem := ta.Done(); rem != 0 {
		t.Fatalf("final Done: remaining=%d, want 0", rem)
	}
	if err := <-done; err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestTallyZeroSeedIsDone(t *testing.T) {
	ta := NewTally(0)
	if err := ta.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait on empty tally: %v", err)
	}
}

func TestTallyConcurrentDone(t *testing.T) {
	const n = 32
	ta := NewTally(n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ta.Done()
		}()
	}
	wg.Wait()

	if err := ta.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait after concurrent Done: %v", err)
	}
	// Extra Done calls after zero are ignored.
	if rem := ta.Done(); rem != 0 {
		t.Fatalf("Done after zero: remaining=%d", rem)
	}
}

func TestTallyWaitTimeout(t *testing.T) {
	ta := NewTally(1)
	if err := ta.Wait(context.Background(), 50*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTallyWaitInterrupted(t *testing.T) {
	ta := NewTally(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ta.Wait(ctx, 0); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestTallyFail(t *testing.T) {
	ta := NewTally(2)
	boom := errors.New("boom")
	ta.Fail(boom)

	if err := ta.Wait(context.Background(), time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestTallyFailAfterCompleteIsNoop(t *testing.T) {
	ta := NewTally(1)
	ta.Done()
	ta.Fail(errors.New("late"))

	if err := ta.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait after complete-then-fail: %v", err)
	}
}
