package memshard

import (
	"errors"
	"fmt"

	"github.com/fddayan/memshard/internal/route"
	"github.com/fddayan/memshard/internal/syncx"
)

var (
	// ErrNoCodec is returned by New when Options.Codec is nil.
	ErrNoCodec = errors.New("memshard: codec is required")

	// ErrNoConnections is returned when the connection manager is
	// missing or empty; key routing is undefined over zero connections.
	ErrNoConnections = route.ErrNoConnections

	// ErrTimeout is returned by every timed entry point when its bound
	// expires before a result is published.
	ErrTimeout = syncx.ErrTimeout

	// ErrInterrupted is returned when a blocking wait is abandoned
	// because the caller's context was cancelled. It is distinct from
	// ErrTimeout and from any server-side outcome.
	ErrInterrupted = syncx.ErrInterrupted

	// ErrShutdown is returned for submissions after Shutdown and
	// delivered to every waiter whose operation will never complete
	// because the client shut down first.
	ErrShutdown = errors.New("memshard: client shut down")
)

// KeyMismatchError reports that a completion callback carried a key that
// does not match the one requested. This indicates a connection manager
// bug, not a recoverable cache state.
type KeyMismatchError struct {
	Requested string
	Received  string
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("memshard: response key %q does not match requested key %q",
		e.Received, e.Requested)
}
