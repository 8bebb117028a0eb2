// Package conn defines the connection manager contract the client
// dispatches through. A manager owns an ordered, index-stable set of
// server connections; the client only ever sees counts, addresses, and
// per-index enqueue.
package conn

import (
	"context"

	"github.com/fddayan/memshard/ops"
)

// Manager multiplexes operations over a fixed set of server connections.
// Implementations must be safe for concurrent Enqueue from application
// goroutines while a single IO-owning goroutine calls Pump. Operations
// enqueued on one index execute in FIFO order, and their callbacks run
// serially relative to each other.
type Manager interface {
	// Count reports the number of connections. Stable for the life of
	// the manager.
	Count() int

	// Addr returns the address of connection i, used to key broadcast
	// results.
	Addr(i int) string

	// Enqueue hands op to connection i. It must not block on network
	// IO; it fails once the manager is closed.
	Enqueue(i int, op ops.Operation) error

	// Pump performs one blocking IO pass: it executes queued
	// operations and invokes their callbacks, returning when it made
	// progress or ctx is cancelled. The client calls it in a loop from
	// its IO-owning goroutine.
	Pump(ctx context.Context) error

	// Close shuts every connection down. Operations still queued will
	// never complete.
	Close() error
}
