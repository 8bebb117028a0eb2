package memshard

import (
	"context"
	"time"

	"github.com/fddayan/memshard/internal/syncx"
	"github.com/fddayan/memshard/ops"
)

// Future is the pending result of one asynchronous operation: the
// operation itself plus the cell its completion callback publishes into.
type Future[T any] struct {
	op   ops.Operation
	cell *syncx.Cell[T]
}

func newFuture[T any](op ops.Operation, cell *syncx.Cell[T]) *Future[T] {
	return &Future[T]{op: op, cell: cell}
}

// Cancel requests cancellation. It returns true only if the operation
// had not begun transmission at the moment of the call; this is best
// effort against a racing IO goroutine, not a hard guarantee.
func (f *Future[T]) Cancel() bool {
	return f.op.Cancel()
}

// Get blocks until the result is published or ctx is cancelled.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	return f.cell.Wait(ctx, 0)
}

// GetTimeout is like Get but bounds the wait: ErrTimeout on expiry.
func (f *Future[T]) GetTimeout(ctx context.Context, timeout time.Duration) (T, error) {
	return f.cell.Wait(ctx, timeout)
}

// Done reports whether the operation's last observed state is complete.
func (f *Future[T]) Done() bool {
	return f.op.State() == ops.StateComplete
}

// Cancelled reports whether a cancel request took effect.
func (f *Future[T]) Cancelled() bool {
	return f.op.Cancelled()
}
