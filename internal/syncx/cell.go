// Package syncx holds the blocking primitives the client parks callers
// on: a publish/wait cell and a counted completion barrier. Producers are
// completion callbacks running on IO-owning goroutines; consumers are
// application goroutines. Both types must stay correct if a future layout
// runs one IO goroutine per connection shard, so nothing here assumes a
// single producer.
package syncx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrTimeout reports that a bounded wait expired before a value was
	// published.
	ErrTimeout = errors.New("memshard: wait timed out")

	// ErrInterrupted reports that a wait was abandoned because the
	// caller's context was cancelled.
	ErrInterrupted = errors.New("memshard: wait interrupted")
)

// Cell is a blocking slot. Publish makes a value visible to every wait
// issued before or after it (no missed-wakeup window); multiple publishes
// are allowed and the last write wins. Fail settles the cell with an
// error instead, releasing all waiters.
type Cell[T any] struct {
	mu  sync.Mutex
	val T
	set bool
	err error
	ch  chan struct{} // closed on every settle, then replaced
}

func NewCell[T any]() *Cell[T] {
	return &Cell[T]{ch: make(chan struct{})}
}

// Publish stores v and wakes all current waiters. Safe for concurrent
// publishers; last writer wins.
func (c *Cell[T]) Publish(v T) {
	c.mu.Lock()
	c.val = v
	c.set = true
	c.err = nil
	c.wakeLocked()
	c.mu.Unlock()
}

// Fail settles the cell with err. Waiters (current and future) receive
// err until a later Publish overwrites it.
func (c *Cell[T]) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.wakeLocked()
	c.mu.Unlock()
}

func (c *Cell[T]) wakeLocked() {
	close(c.ch)
	c.ch = make(chan struct{})
}

// Read returns the current value without blocking; ok is false if
// nothing has been published yet.
func (c *Cell[T]) Read() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.set
}

// Wait blocks until a value has been published, the cell fails, the
// timeout expires, or ctx is cancelled. timeout <= 0 means no bound.
func (c *Cell[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	return c.WaitFor(ctx, func(_ T, set bool) bool { return set }, timeout)
}

// WaitFor blocks until pred holds over (value, published), with the same
// bounds as Wait. The predicate is evaluated under the cell lock and must
// be cheap and side-effect free.
func (c *Cell[T]) WaitFor(ctx context.Context, pred func(v T, set bool) bool, timeout time.Duration) (T, error) {
	var zero T
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		c.mu.Lock()
		if c.err != nil {
			err := c.err
			c.mu.Unlock()
			return zero, err
		}
		if pred(c.val, c.set) {
			v := c.val
			c.mu.Unlock()
			return v, nil
		}
		// Capture the wake channel under the lock so a publish racing
		// with this wait still wakes us.
		ch := c.ch
		c.mu.Unlock()

		select {
		case <-ch:
		case <-timer:
			return zero, ErrTimeout
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}
	}
}
