package memshard

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the client calls them
// from its IO-owning goroutine and from completion callbacks.
type Hooks interface {
	// One IO pump pass failed. The loop keeps running.
	PumpError(err error)

	// A completion callback carried the wrong key (connection manager
	// bug). The blocked caller receives a KeyMismatchError.
	KeyMismatch(requested, received string)

	// The connection manager refused an enqueue.
	EnqueueRejected(addr string, err error)

	// Shutdown failed count waiters whose operations never completed.
	ShutdownAbandoned(count int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PumpError(error)               {}
func (NopHooks) KeyMismatch(string, string)    {}
func (NopHooks) EnqueueRejected(string, error) {}
func (NopHooks) ShutdownAbandoned(int)         {}
