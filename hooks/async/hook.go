// Package asynchook decouples hook consumers from the client's IO
// goroutine: events are queued and replayed on worker goroutines, and
// dropped (never blocking) when the queue is full.
//
// usage:
//
//	raw := loghooks.New(slog.Default(), loghooks.Options{})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	client, _ := memshard.New[User](memshard.Options[User]{
//	    Conn:  cluster,
//	    Codec: codec.JSON[User]{},
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/fddayan/memshard"
)

type Hooks struct {
	inner memshard.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ memshard.Hooks = (*Hooks)(nil)

func New(inner memshard.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) PumpError(err error) { h.try(func() { h.inner.PumpError(err) }) }
func (h *Hooks) KeyMismatch(requested, received string) {
	h.try(func() { h.inner.KeyMismatch(requested, received) })
}
func (h *Hooks) EnqueueRejected(addr string, err error) {
	h.try(func() { h.inner.EnqueueRejected(addr, err) })
}
func (h *Hooks) ShutdownAbandoned(count int) { h.try(func() { h.inner.ShutdownAbandoned(count) }) }
