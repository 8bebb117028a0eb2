package memshard

import (
	"github.com/fddayan/memshard/codec"
	"github.com/fddayan/memshard/conn"
)

// Options tune the behavior of the client. Conn and Codec are required;
// others have sensible defaults.
type Options[V any] struct {
	// Required
	Conn  conn.Manager   // connection set the client dispatches over
	Codec codec.Codec[V] // value <-> flagged-payload converter

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// New validates opts, builds a client, and starts its IO-owning
// goroutine. Call Shutdown when done.
func New[V any](opts Options[V]) (*Client[V], error) {
	return newClient[V](opts)
}
