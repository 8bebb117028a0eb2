// Package route maps cache keys to connection indexes.
package route

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// ErrNoConnections is returned when routing is attempted against an
// empty connection set.
var ErrNoConnections = errors.New("route: no connections")

// Index returns the connection index responsible for key, in [0, conns).
// The mapping is a pure function of (key, conns): repeated calls agree as
// long as conns is unchanged. Changing the connection count remaps keys
// arbitrarily; there is no consistent-hashing here.
func Index(key string, conns int) (int, error) {
	if conns <= 0 {
		return 0, ErrNoConnections
	}
	return int(xxhash.Sum64String(key) % uint64(conns)), nil
}
