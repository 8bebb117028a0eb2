// Package memconn is an in-process conn.Manager: a cluster of N
// simulated cache servers, each with its own item table, FIFO operation
// queue, and stat counters. It exists for tests and local development;
// it speaks the same operation semantics a real server would (store
// preconditions, flags round-trip, expirations, decimal counters,
// delayed flush and delete).
package memconn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fddayan/memshard/conn"
	"github.com/fddayan/memshard/ops"
)

// ErrClosed is returned by Enqueue and Pump after Close.
var ErrClosed = errors.New("memconn: cluster closed")

var _ conn.Manager = (*Cluster)(nil)

const version = "1.5.22-memconn"

type item struct {
	flags    uint32
	data     []byte
	exp      time.Time // zero = never
	storedAt time.Time
}

type server struct {
	addr string

	mu      sync.Mutex
	queue   []ops.Operation
	items   map[string]item
	flushAt time.Time

	cmdGet     uint64
	cmdSet     uint64
	getHits    uint64
	getMisses  uint64
	totalItems uint64
}

// Cluster implements conn.Manager over in-process servers.
type Cluster struct {
	servers []*server
	wake    chan struct{}

	mu     sync.Mutex
	closed bool
}

// New returns a cluster of n empty servers. n must be positive.
func New(n int) *Cluster {
	if n <= 0 {
		panic("memconn: cluster size must be positive")
	}
	c := &Cluster{
		servers: make([]*server, n),
		wake:    make(chan struct{}, 1),
	}
	for i := range c.servers {
		c.servers[i] = &server{
			addr:  fmt.Sprintf("memconn://shard-%d", i),
			items: make(map[string]item),
		}
	}
	return c
}

func (c *Cluster) Count() int { return len(c.servers) }

func (c *Cluster) Addr(i int) string { return c.servers[i].addr }

func (c *Cluster) Enqueue(i int, op ops.Operation) error {
	if i < 0 || i >= len(c.servers) {
		return fmt.Errorf("memconn: connection index %d out of range", i)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	s := c.servers[i]
	s.mu.Lock()
	s.queue = append(s.queue, op)
	s.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pump executes everything currently queued across all servers, in FIFO
// order per server. With nothing queued it blocks until an Enqueue
// arrives or ctx is cancelled.
func (c *Cluster) Pump(ctx context.Context) error {
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}

		worked := false
		for _, s := range c.servers {
			if s.drain() {
				worked = true
			}
		}
		if worked {
			return nil
		}

		select {
		case <-c.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting and executing work. Operations still queued
// never complete; their callbacks never fire.
func (c *Cluster) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *server) drain() bool {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, op := range batch {
		s.execute(op)
	}
	return len(batch) > 0
}

func (s *server) execute(op ops.Operation) {
	if op.Cancelled() {
		return
	}
	switch o := op.(type) {
	case *ops.Store:
		o.Transition(ops.StateWriting)
		status := s.store(o)
		o.Transition(ops.StateReading)
		if o.OnResult != nil {
			o.OnResult(status)
		}
		o.Transition(ops.StateComplete)
	case *ops.Get:
		o.Transition(ops.StateWriting)
		found := s.lookup(o.Keys)
		o.Transition(ops.StateReading)
		for _, f := range found {
			if o.OnValue != nil {
				o.OnValue(f.key, f.flags, f.data)
			}
		}
		if o.OnComplete != nil {
			o.OnComplete()
		}
		o.Transition(ops.StateComplete)
	case *ops.Delete:
		o.Transition(ops.StateWriting)
		s.delete(o.Key, o.When)
		o.Transition(ops.StateComplete)
	case *ops.Flush:
		o.Transition(ops.StateWriting)
		s.flush(o.Delay)
		o.Transition(ops.StateComplete)
	case *ops.Version:
		o.Transition(ops.StateWriting)
		o.Transition(ops.StateReading)
		if o.OnResult != nil {
			o.OnResult(version)
		}
		o.Transition(ops.StateComplete)
	case *ops.Stats:
		o.Transition(ops.StateWriting)
		pairs := s.statPairs()
		o.Transition(ops.StateReading)
		for _, p := range pairs {
			if o.OnStat != nil {
				o.OnStat(p[0], p[1])
			}
		}
		if o.OnComplete != nil {
			o.OnComplete()
		}
		o.Transition(ops.StateComplete)
	case *ops.Mutator:
		o.Transition(ops.StateWriting)
		val, ok := s.mutate(o)
		o.Transition(ops.StateReading)
		if o.OnResult != nil {
			o.OnResult(val, ok)
		}
		o.Transition(ops.StateComplete)
	}
}

// liveLocked reports the item under key, lazily evicting entries that
// expired or predate a due flush. Callers hold s.mu.
func (s *server) liveLocked(key string) (item, bool) {
	it, ok := s.items[key]
	if !ok {
		return item{}, false
	}
	now := time.Now()
	if !it.exp.IsZero() && now.After(it.exp) {
		delete(s.items, key)
		return item{}, false
	}
	if !s.flushAt.IsZero() && now.After(s.flushAt) && it.storedAt.Before(s.flushAt) {
		delete(s.items, key)
		return item{}, false
	}
	return it, true
}

func (s *server) setLocked(key string, flags uint32, exp int32, data []byte) {
	it := item{flags: flags, data: append([]byte(nil), data...), storedAt: time.Now()}
	if exp > 0 {
		it.exp = it.storedAt.Add(time.Duration(exp) * time.Second)
	}
	s.items[key] = it
	s.totalItems++
}

func (s *server) store(o *ops.Store) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmdSet++
	_, exists := s.liveLocked(o.Key)
	switch o.Mode {
	case ops.StoreAdd:
		if exists {
			return ops.StatusNotStored
		}
	case ops.StoreReplace:
		if !exists {
			return ops.StatusNotStored
		}
	}
	s.setLocked(o.Key, o.Flags, o.Expiration, o.Data)
	return ops.StatusStored
}

type foundValue struct {
	key   string
	flags uint32
	data  []byte
}

func (s *server) lookup(keys []string) []foundValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []foundValue
	for _, k := range keys {
		s.cmdGet++
		it, ok := s.liveLocked(k)
		if !ok {
			s.getMisses++
			continue
		}
		s.getHits++
		out = append(out, foundValue{key: k, flags: it.flags, data: append([]byte(nil), it.data...)})
	}
	return out
}

func (s *server) delete(key string, when int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if when <= 0 {
		delete(s.items, key)
		return
	}
	it, ok := s.liveLocked(key)
	if !ok {
		return
	}
	deadline := time.Now().Add(time.Duration(when) * time.Second)
	if it.exp.IsZero() || deadline.Before(it.exp) {
		it.exp = deadline
		s.items[key] = it
	}
}

func (s *server) flush(delay int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delay <= 0 {
		s.items = make(map[string]item)
		return
	}
	s.flushAt = time.Now().Add(time.Duration(delay) * time.Second)
}

func (s *server) mutate(o *ops.Mutator) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.liveLocked(o.Key)
	if !ok {
		return 0, false
	}
	cur, err := strconv.ParseInt(string(it.data), 10, 64)
	if err != nil {
		cur = 0
	}
	next := cur + o.By
	if o.Op == ops.Decr {
		next = cur - o.By
		if next < 0 {
			next = 0
		}
	}
	it.data = []byte(strconv.FormatInt(next, 10))
	s.items[o.Key] = it
	return next, true
}

func (s *server) statPairs() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [][2]string{
		{"version", version},
		{"curr_items", strconv.Itoa(len(s.items))},
		{"total_items", strconv.FormatUint(s.totalItems, 10)},
		{"cmd_get", strconv.FormatUint(s.cmdGet, 10)},
		{"cmd_set", strconv.FormatUint(s.cmdSet, 10)},
		{"get_hits", strconv.FormatUint(s.getHits, 10)},
		{"get_misses", strconv.FormatUint(s.getMisses, 10)},
	}
}
