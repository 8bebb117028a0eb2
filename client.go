package memshard

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fddayan/memshard/codec"
	"github.com/fddayan/memshard/conn"
	"github.com/fddayan/memshard/internal/route"
	"github.com/fddayan/memshard/internal/syncx"
	"github.com/fddayan/memshard/ops"
)

// codecBox wraps the active codec so it can sit behind an atomic pointer.
type codecBox[V any] struct {
	c codec.Codec[V]
}

// Client dispatches cache operations over a fixed set of server
// connections, keyed by a pure hash route. Application goroutines hand
// operations to the connection manager and block on a cell or barrier;
// one IO-owning goroutine drives the manager's pump and every completion
// callback. All methods are safe for concurrent use.
type Client[V any] struct {
	conn  conn.Manager
	log   Logger
	hooks Hooks

	codec atomic.Pointer[codecBox[V]]

	running  atomic.Bool
	pumpStop context.CancelFunc
	pumpDone chan struct{}

	// waiters parked on operations in flight, so shutdown can fail
	// them instead of stranding their callers.
	pendMu  sync.Mutex
	pending map[uint64]func(error)
	nextID  atomic.Uint64

	closeOnce sync.Once
}

func newClient[V any](opts Options[V]) (*Client[V], error) {
	if opts.Conn == nil || opts.Conn.Count() == 0 {
		return nil, ErrNoConnections
	}
	if opts.Codec == nil {
		return nil, ErrNoCodec
	}

	c := &Client[V]{
		conn:     opts.Conn,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		pending:  make(map[uint64]func(error)),
		pumpDone: make(chan struct{}),
	}
	c.codec.Store(&codecBox[V]{c: opts.Codec})
	c.running.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	c.pumpStop = cancel
	go c.ioLoop(ctx)
	return c, nil
}

// ioLoop is the IO-owning goroutine: it repeatedly drives the connection
// manager's pump, which executes queued operations and invokes their
// completion callbacks. Pump failures are logged and the loop continues.
func (c *Client[V]) ioLoop(ctx context.Context) {
	defer close(c.pumpDone)
	for c.running.Load() {
		if err := c.conn.Pump(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("io pump error", Fields{"err": err})
			c.hooks.PumpError(err)
		}
	}
}

// SetCodec swaps the active codec. Last writer wins; operations already
// in flight keep the codec they captured at submission. Not synchronized
// with concurrent encode/decode beyond the pointer swap.
func (c *Client[V]) SetCodec(cd codec.Codec[V]) error {
	if cd == nil {
		return ErrNoCodec
	}
	c.codec.Store(&codecBox[V]{c: cd})
	return nil
}

func (c *Client[V]) activeCodec() codec.Codec[V] {
	return c.codec.Load().c
}

func (c *Client[V]) track(fail func(error)) uint64 {
	id := c.nextID.Add(1)
	c.pendMu.Lock()
	c.pending[id] = fail
	c.pendMu.Unlock()
	return id
}

func (c *Client[V]) untrack(id uint64) {
	c.pendMu.Lock()
	delete(c.pending, id)
	c.pendMu.Unlock()
}

func (c *Client[V]) dispatch(idx int, op ops.Operation) error {
	if !c.running.Load() {
		return ErrShutdown
	}
	if err := c.conn.Enqueue(idx, op); err != nil {
		c.hooks.EnqueueRejected(c.conn.Addr(idx), err)
		return err
	}
	return nil
}

// Add stores v under key only if the key does not exist yet. The future
// resolves to the server's status token (ops.StatusStored on success).
func (c *Client[V]) Add(key string, exp int32, v V) (*Future[string], error) {
	return c.store(ops.StoreAdd, key, exp, v)
}

// Set stores v under key regardless of any existing value.
func (c *Client[V]) Set(key string, exp int32, v V) (*Future[string], error) {
	return c.store(ops.StoreSet, key, exp, v)
}

// Replace stores v under key only if a value is already present.
func (c *Client[V]) Replace(key string, exp int32, v V) (*Future[string], error) {
	return c.store(ops.StoreReplace, key, exp, v)
}

func (c *Client[V]) store(mode ops.StoreMode, key string, exp int32, v V) (*Future[string], error) {
	blob, err := c.activeCodec().Encode(v)
	if err != nil {
		return nil, err
	}
	return c.storeBlob(mode, key, exp, blob)
}

func (c *Client[V]) storeBlob(mode ops.StoreMode, key string, exp int32, blob codec.Blob) (*Future[string], error) {
	idx, err := route.Index(key, c.conn.Count())
	if err != nil {
		return nil, err
	}

	cell := syncx.NewCell[string]()
	var id uint64
	op := ops.NewStore(mode, key, blob.Flags, exp, blob.Data, func(status string) {
		c.untrack(id)
		cell.Publish(status)
	})
	id = c.track(cell.Fail)
	if err := c.dispatch(idx, op); err != nil {
		c.untrack(id)
		return nil, err
	}
	return newFuture(op, cell), nil
}

// Get retrieves key, blocking until the server answers. ok is false when
// the key is absent; that is an ordinary cache state, not an error.
func (c *Client[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return c.get(ctx, key, 0)
}

// GetTimeout is Get with a bounded wait: ErrTimeout on expiry, which is
// distinguishable from an absent key.
func (c *Client[V]) GetTimeout(ctx context.Context, key string, timeout time.Duration) (V, bool, error) {
	return c.get(ctx, key, timeout)
}

func (c *Client[V]) get(ctx context.Context, key string, timeout time.Duration) (V, bool, error) {
	var zero V
	idx, err := route.Index(key, c.conn.Count())
	if err != nil {
		return zero, false, err
	}

	// One-slot holder filled by the value callback, published as a
	// whole on stream end. Both callbacks run serially on the IO
	// goroutine owning this connection.
	var got *codec.Blob
	var bad bool
	cell := syncx.NewCell[*codec.Blob]()
	var id uint64
	op := ops.NewGet([]string{key},
		func(k string, flags uint32, data []byte) {
			if k != key {
				bad = true
				c.log.Error("response key does not match request", Fields{"requested": key, "received": k})
				c.hooks.KeyMismatch(key, k)
				cell.Fail(&KeyMismatchError{Requested: key, Received: k})
				return
			}
			got = &codec.Blob{Flags: flags, Data: data}
		},
		func() {
			c.untrack(id)
			if bad {
				return
			}
			cell.Publish(got)
		})
	id = c.track(cell.Fail)
	if err := c.dispatch(idx, op); err != nil {
		c.untrack(id)
		return zero, false, err
	}

	blob, err := cell.Wait(ctx, timeout)
	if err != nil {
		return zero, false, err
	}
	if blob == nil {
		return zero, false, nil
	}
	v, err := c.activeCodec().Decode(*blob)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// GetMulti retrieves many keys at once, one multi-key operation per
// distinct connection. The result holds only the keys found; absent keys
// are simply missing. No ordering across keys.
func (c *Client[V]) GetMulti(ctx context.Context, keys []string) (map[string]V, error) {
	return c.getMulti(ctx, keys, 0)
}

// GetMultiTimeout is GetMulti with a bounded wait.
func (c *Client[V]) GetMultiTimeout(ctx context.Context, keys []string, timeout time.Duration) (map[string]V, error) {
	return c.getMulti(ctx, keys, timeout)
}

func (c *Client[V]) getMulti(ctx context.Context, keys []string, timeout time.Duration) (map[string]V, error) {
	n := c.conn.Count()
	chunks := make(map[int][]string)
	for _, k := range keys {
		idx, err := route.Index(k, n)
		if err != nil {
			return nil, err
		}
		chunks[idx] = append(chunks[idx], k)
	}

	out := make(map[string]V, len(keys))
	if len(chunks) == 0 {
		return out, nil
	}

	// Keys are disjoint across connections, but callbacks may run on
	// different IO goroutines, so the shared map is still guarded.
	var outMu sync.Mutex
	tally := syncx.NewTally(len(chunks))
	id := c.track(tally.Fail)
	cd := c.activeCodec()

	for idx, ks := range chunks {
		requested := make(map[string]bool, len(ks))
		for _, k := range ks {
			requested[k] = true
		}
		op := ops.NewGet(ks,
			func(k string, flags uint32, data []byte) {
				if !requested[k] {
					c.log.Error("response key does not match request", Fields{"requested": ks, "received": k})
					c.hooks.KeyMismatch(strings.Join(ks, ","), k)
					tally.Fail(&KeyMismatchError{Requested: strings.Join(ks, ","), Received: k})
					return
				}
				v, err := cd.Decode(codec.Blob{Flags: flags, Data: data})
				if err != nil {
					c.log.Warn("dropping undecodable value", Fields{"key": k, "err": err})
					return
				}
				outMu.Lock()
				out[k] = v
				outMu.Unlock()
			},
			func() {
				if tally.Done() == 0 {
					c.untrack(id)
				}
			})
		if err := c.dispatch(idx, op); err != nil {
			c.untrack(id)
			return nil, err
		}
	}

	if err := tally.Wait(ctx, timeout); err != nil {
		return nil, err
	}
	return out, nil
}

// Versions asks every connected server for its version string, keyed by
// connection address.
func (c *Client[V]) Versions(ctx context.Context) (map[string]string, error) {
	n := c.conn.Count()
	out := make(map[string]string, n)
	var outMu sync.Mutex
	tally := syncx.NewTally(n)
	id := c.track(tally.Fail)

	for i := 0; i < n; i++ {
		addr := c.conn.Addr(i)
		op := ops.NewVersion(func(ver string) {
			outMu.Lock()
			out[addr] = ver
			outMu.Unlock()
			if tally.Done() == 0 {
				c.untrack(id)
			}
		})
		if err := c.dispatch(i, op); err != nil {
			c.untrack(id)
			return nil, err
		}
	}

	if err := tally.Wait(ctx, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats collects statistics from every connected server, keyed by
// connection address.
func (c *Client[V]) Stats(ctx context.Context) (map[string]map[string]string, error) {
	n := c.conn.Count()
	out := make(map[string]map[string]string, n)
	tally := syncx.NewTally(n)
	id := c.track(tally.Fail)

	for i := 0; i < n; i++ {
		// The outer map is fully populated before dispatch; each
		// callback writes only its own connection's inner map, and the
		// barrier orders the final read after the last write.
		sub := make(map[string]string)
		out[c.conn.Addr(i)] = sub
		op := ops.NewStats(
			func(name, value string) { sub[name] = value },
			func() {
				if tally.Done() == 0 {
					c.untrack(id)
				}
			})
		if err := c.dispatch(i, op); err != nil {
			c.untrack(id)
			return nil, err
		}
	}

	if err := tally.Wait(ctx, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Incr increments the counter under key by the given amount and returns
// the new value, or -1 when the key does not exist. The sentinel is an
// ordinary outcome, not an error.
func (c *Client[V]) Incr(ctx context.Context, key string, by int64) (int64, error) {
	return c.mutate(ctx, ops.Incr, key, by)
}

// Decr decrements the counter under key, flooring at zero on the server;
// -1 when the key does not exist.
func (c *Client[V]) Decr(ctx context.Context, key string, by int64) (int64, error) {
	return c.mutate(ctx, ops.Decr, key, by)
}

func (c *Client[V]) mutate(ctx context.Context, m ops.MutatorOp, key string, by int64) (int64, error) {
	idx, err := route.Index(key, c.conn.Count())
	if err != nil {
		return 0, err
	}

	cell := syncx.NewCell[int64]()
	var id uint64
	op := ops.NewMutator(m, key, by, func(v int64, ok bool) {
		if !ok {
			v = -1
		}
		c.untrack(id)
		cell.Publish(v)
	})
	id = c.track(cell.Fail)
	if err := c.dispatch(idx, op); err != nil {
		c.untrack(id)
		return 0, err
	}

	v, err := cell.Wait(ctx, 0)
	if err != nil {
		return 0, err
	}
	c.log.Debug("mutation result", Fields{"key": key, "op": m.String(), "value": v})
	return v, nil
}

// IncrWithDefault is Incr, except that a missing counter is created with
// def and def is returned. Creation is a separate add of the default's
// decimal text: a concurrent creator can win the race between the failed
// mutation and the add, in which case -1 is returned. The server offers
// no atomic increment-or-initialize, so the window is unavoidable.
func (c *Client[V]) IncrWithDefault(ctx context.Context, key string, by, def int64) (int64, error) {
	return c.mutateWithDefault(ctx, ops.Incr, key, by, def)
}

// DecrWithDefault is the decrement counterpart of IncrWithDefault.
func (c *Client[V]) DecrWithDefault(ctx context.Context, key string, by, def int64) (int64, error) {
	return c.mutateWithDefault(ctx, ops.Decr, key, by, def)
}

func (c *Client[V]) mutateWithDefault(ctx context.Context, m ops.MutatorOp, key string, by, def int64) (int64, error) {
	rv, err := c.mutate(ctx, m, key, by)
	if err != nil || rv != -1 {
		return rv, err
	}

	// Counters live on the server as decimal text, so the default
	// bypasses the value codec.
	f, err := c.storeBlob(ops.StoreAdd, key, 0, codec.Blob{
		Flags: codec.FlagRaw,
		Data:  []byte(strconv.FormatInt(def, 10)),
	})
	if err != nil {
		return -1, err
	}
	status, err := f.Get(ctx)
	if err != nil {
		return -1, err
	}
	if status == ops.StatusStored {
		return def, nil
	}
	return -1, nil
}

// Delete removes key immediately. Fire and forget: the call returns once
// the operation is queued.
func (c *Client[V]) Delete(key string) error {
	return c.DeleteAfter(key, 0)
}

// DeleteAfter removes key after when seconds.
func (c *Client[V]) DeleteAfter(key string, when int32) error {
	idx, err := route.Index(key, c.conn.Count())
	if err != nil {
		return err
	}
	return c.dispatch(idx, ops.NewDelete(key, when))
}

// Flush drops every item on every server. Fire and forget: one flush
// operation per connection, no waiting, no result.
func (c *Client[V]) Flush() error {
	return c.FlushAfter(0)
}

// FlushAfter flushes every server after delay seconds.
func (c *Client[V]) FlushAfter(delay int32) error {
	for i := 0; i < c.conn.Count(); i++ {
		if err := c.dispatch(i, ops.NewFlush(delay)); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the IO goroutine, closes the connections (close
// failures are logged, not raised), and fails every waiter still parked
// on an operation that will now never complete. Idempotent; submissions
// after Shutdown return ErrShutdown.
func (c *Client[V]) Shutdown() {
	c.closeOnce.Do(func() {
		c.running.Store(false)
		c.pumpStop()
		<-c.pumpDone

		if err := c.conn.Close(); err != nil {
			c.log.Warn("error closing connections", Fields{"err": err})
		}

		c.pendMu.Lock()
		abandoned := c.pending
		c.pending = make(map[uint64]func(error))
		c.pendMu.Unlock()
		for _, fail := range abandoned {
			fail(ErrShutdown)
		}
		if len(abandoned) > 0 {
			c.log.Warn("abandoned in-flight operations at shutdown", Fields{"count": len(abandoned)})
			c.hooks.ShutdownAbandoned(len(abandoned))
		}
		c.log.Info("client shut down", nil)
	})
}
