package syncx

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Tally is a counted completion barrier for fan-out calls: seeded with
// the number of dispatched sub-operations, decremented once per
// completion callback, done exactly when the count reaches zero.
// Seed the full count before dispatching anything so a fast completion
// cannot observe a transient zero.
type Tally struct {
	mu   sync.Mutex
	n    int
	err  error
	done chan struct{}
}

// NewTally returns a barrier expecting n completions. n <= 0 is already
// done.
func NewTally(n int) *Tally {
	t := &Tally{n: n, done: make(chan struct{})}
	if n <= 0 {
		close(t.done)
	}
	return t
}

// Done records one completion and returns the remaining count. Safe for
// concurrent calls from independent completion callbacks. Calls after
// zero are ignored and report zero.
func (t *Tally) Done() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n <= 0 {
		return 0
	}
	t.n--
	if t.n == 0 {
		close(t.done)
	}
	return t.n
}

// Fail releases all waiters with err. A barrier that already completed
// (or already failed) is left alone.
func (t *Tally) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil || t.n <= 0 {
		return
	}
	t.err = err
	t.n = 0
	close(t.done)
}

// Wait blocks until the count reaches zero, the barrier fails, the
// timeout expires, or ctx is cancelled. timeout <= 0 means no bound.
func (t *Tally) Wait(ctx context.Context, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		timer = tm.C
	}
	select {
	case <-t.done:
		t.mu.Lock()
		err := t.err
		t.mu.Unlock()
		return err
	case <-timer:
		return ErrTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	}
}
