// Package ops defines the operation family a connection manager executes
// on behalf of the client: one concrete type per request shape, each
// carrying its semantic parameters and completion callbacks. The client
// never sees wire bytes; encoding and decoding happen inside the manager.
//
// Callbacks for a given operation are invoked serially by the goroutine
// that owns its connection's IO.
package ops

import "sync/atomic"

// State is an operation's lifecycle phase as last observed.
type State int32

const (
	// StateQueued means the operation has not begun transmission.
	StateQueued State = iota
	// StateWriting means the request is being transmitted.
	StateWriting
	// StateReading means the response is being consumed.
	StateReading
	// StateComplete means all callbacks have fired.
	StateComplete
	// StateCancelled means the operation was cancelled before
	// transmission and will never execute.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateWriting:
		return "writing"
	case StateReading:
		return "reading"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Server status tokens for store results.
const (
	StatusStored    = "STORED"
	StatusNotStored = "NOT_STORED"
	StatusExists    = "EXISTS"
	StatusNotFound  = "NOT_FOUND"
)

// Operation is the lifecycle surface shared by every request shape.
type Operation interface {
	// State reports the last observed lifecycle phase.
	State() State
	// Cancel requests cancellation. It returns true only if the
	// operation was still queued at the moment of the call; an
	// operation that has begun transmission runs to completion.
	Cancel() bool
	// Cancelled reports whether a cancel request took effect.
	Cancelled() bool
}

// Base carries lifecycle state for concrete operations. Embed by
// pointer-receiver types; executors drive it with Transition.
type Base struct {
	state atomic.Int32
}

func (b *Base) State() State { return State(b.state.Load()) }

// Transition moves the operation into s. Managers call this as they
// carry an operation through its exchange. Transitions out of
// StateCancelled are ignored.
func (b *Base) Transition(s State) {
	for {
		cur := b.state.Load()
		if State(cur) == StateCancelled {
			return
		}
		if b.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Cancel atomically moves a still-queued operation to StateCancelled.
func (b *Base) Cancel() bool {
	return b.state.CompareAndSwap(int32(StateQueued), int32(StateCancelled))
}

func (b *Base) Cancelled() bool { return b.State() == StateCancelled }
