package memshard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fddayan/memshard/codec"
	"github.com/fddayan/memshard/conn"
	"github.com/fddayan/memshard/conn/memconn"
	"github.com/fddayan/memshard/ops"
)

func newTestClient(t *testing.T, shards int) *Client[string] {
	t.Helper()
	c, err := New[string](Options[string]{
		Conn:  memconn.New(shards),
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

// stalledConn accepts operations but never executes them; Pump blocks
// until the context is cancelled. It stands in for a wedged cluster.
type stalledConn struct {
	count int

	mu  sync.Mutex
	ops []ops.Operation
}

var _ conn.Manager = (*stalledConn)(nil)

func (s *stalledConn) Count() int        { return s.count }
func (s *stalledConn) Addr(i int) string { return fmt.Sprintf("stalled-%d", i) }
func (s *stalledConn) Enqueue(_ int, op ops.Operation) error {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
	return nil
}
func (s *stalledConn) Pump(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s *stalledConn) Close() error { return nil }

// crossedConn answers every get with a value for the wrong key.
type crossedConn struct{ stalledConn }

func (c *crossedConn) Enqueue(_ int, op ops.Operation) error {
	if g, ok := op.(*ops.Get); ok {
		g.Transition(ops.StateReading)
		g.OnValue("some-other-key", 0, []byte("x"))
		g.OnComplete()
		g.Transition(ops.StateComplete)
	}
	return nil
}

func TestNewValidation(t *testing.T) {
	if _, err := New[string](Options[string]{Codec: codec.String{}}); !errors.Is(err, ErrNoConnections) {
		t.Fatalf("missing conn: %v", err)
	}
	if _, err := New[string](Options[string]{Conn: memconn.New(1)}); !errors.Is(err, ErrNoCodec) {
		t.Fatalf("missing codec: %v", err)
	}
}

func TestAddSetReplaceStatuses(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 3)

	get := func(f *Future[string], err error) string {
		t.Helper()
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		st, err := f.Get(ctx)
		if err != nil {
			t.Fatalf("future: %v", err)
		}
		return st
	}

	if st := get(c.Add("k", 0, "v1")); st != ops.StatusStored {
		t.Fatalf("first add: %q", st)
	}
	if st := get(c.Add("k", 0, "v2")); st != ops.StatusNotStored {
		t.Fatalf("second add: %q", st)
	}
	if st := get(c.Set("k", 0, "v3")); st != ops.StatusStored {
		t.Fatalf("set over existing: %q", st)
	}
	if st := get(c.Set("fresh", 0, "v")); st != ops.StatusStored {
		t.Fatalf("set on fresh key: %q", st)
	}
	if st := get(c.Replace("k", 0, "v4")); st != ops.StatusStored {
		t.Fatalf("replace existing: %q", st)
	}
	if st := get(c.Replace("never-stored", 0, "v")); st != ops.StatusNotStored {
		t.Fatalf("replace missing: %q", st)
	}
}

func TestGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 3)

	if _, ok, err := c.Get(ctx, "nothing"); err != nil || ok {
		t.Fatalf("get on never-stored key: ok=%v err=%v", ok, err)
	}

	f, err := c.Set("greeting", 0, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Get(ctx); err != nil {
		t.Fatal(err)
	}

	v, ok, err := c.Get(ctx, "greeting")
	if err != nil || !ok || v != "hello" {
		t.Fatalf("get after set: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestGetTimeoutIsDistinctFromMiss(t *testing.T) {
	c, err := New[string](Options[string]{
		Conn:  &stalledConn{count: 2},
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Shutdown)

	start := time.Now()
	_, ok, err := c.GetTimeout(context.Background(), "k", 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got ok=%v err=%v", ok, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timed get did not honor its bound")
	}
}

func TestGetInterrupted(t *testing.T) {
	c, err := New[string](Options[string]{
		Conn:  &stalledConn{count: 1},
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err = c.Get(ctx, "k")
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestGetKeyMismatchIsSurfaced(t *testing.T) {
	c, err := New[string](Options[string]{
		Conn:  &crossedConn{stalledConn{count: 1}},
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Shutdown)

	_, _, err = c.Get(context.Background(), "wanted")
	var mismatch *KeyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected KeyMismatchError, got %v", err)
	}
	if mismatch.Requested != "wanted" || mismatch.Received != "some-other-key" {
		t.Fatalf("mismatch fields: %+v", mismatch)
	}
}

func TestGetMulti(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 3)

	for _, k := range []string{"k1", "k3"} {
		f, err := c.Set(k, 0, "val-"+k)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Get(ctx); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.GetMulti(ctx, []string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("GetMulti: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly {k1,k3}, got %v", got)
	}
	if got["k1"] != "val-k1" || got["k3"] != "val-k3" {
		t.Fatalf("wrong values: %v", got)
	}
	if _, present := got["k2"]; present {
		t.Fatal("absent key must be missing from the result, not mapped")
	}
}

func TestGetMultiEmptyKeys(t *testing.T) {
	c := newTestClient(t, 2)
	got, err := c.GetMulti(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("GetMulti(nil): got=%v err=%v", got, err)
	}
}

func TestConcurrentGetsDoNotCross(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 4)

	const n = 16
	for i := 0; i < n; i++ {
		f, err := c.Set(fmt.Sprintf("key-%d", i), 0, fmt.Sprintf("value-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Get(ctx); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, ok, err := c.Get(ctx, fmt.Sprintf("key-%d", i))
			if err != nil || !ok || v != fmt.Sprintf("value-%d", i) {
				errs <- fmt.Errorf("key-%d: v=%q ok=%v err=%v", i, v, ok, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestVersionsAndStatsOnePerAddress(t *testing.T) {
	ctx := context.Background()
	for _, shards := range []int{1, 3} {
		c := newTestClient(t, shards)

		vs, err := c.Versions(ctx)
		if err != nil {
			t.Fatalf("Versions(%d shards): %v", shards, err)
		}
		if len(vs) != shards {
			t.Fatalf("Versions(%d shards): %d entries: %v", shards, len(vs), vs)
		}
		for addr, v := range vs {
			if v == "" {
				t.Fatalf("empty version for %s", addr)
			}
		}

		st, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats(%d shards): %v", shards, err)
		}
		if len(st) != shards {
			t.Fatalf("Stats(%d shards): %d entries", shards, len(st))
		}
		for addr, m := range st {
			if _, ok := m["curr_items"]; !ok {
				t.Fatalf("stats for %s missing curr_items: %v", addr, m)
			}
		}
	}
}

func TestIncrDecr(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 2)

	if v, err := c.Incr(ctx, "ctr", 1); err != nil || v != -1 {
		t.Fatalf("incr on missing key: v=%d err=%v", v, err)
	}

	if v, err := c.IncrWithDefault(ctx, "ctr", 1, 5); err != nil || v != 5 {
		t.Fatalf("incr with default: v=%d err=%v", v, err)
	}

	if v, err := c.Incr(ctx, "ctr", 1); err != nil || v != 6 {
		t.Fatalf("incr after default seed: v=%d err=%v", v, err)
	}

	if v, err := c.Decr(ctx, "ctr", 2); err != nil || v != 4 {
		t.Fatalf("decr: v=%d err=%v", v, err)
	}

	if v, err := c.DecrWithDefault(ctx, "other", 1, 9); err != nil || v != 9 {
		t.Fatalf("decr with default: v=%d err=%v", v, err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 2)

	f, err := c.Set("doomed", 0, "v")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Get(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.Delete("doomed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Delete is fire-and-forget; poll until the IO loop has applied it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, ok, err := c.Get(ctx, "doomed")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("key still present after delete")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushReachesEveryConnection(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 3)

	keys := make([]string, 12)
	for i := range keys {
		keys[i] = fmt.Sprintf("fk-%d", i)
		f, err := c.Set(keys[i], 0, "v")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Get(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := c.GetMulti(ctx, keys)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("items survived flush: %v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushDoesNotBlock(t *testing.T) {
	c, err := New[string](Options[string]{
		Conn:  &stalledConn{count: 3},
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Shutdown)

	done := make(chan error, 1)
	go func() { done <- c.Flush() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush blocked waiting for completion")
	}
}

func TestSetCodecSwap(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 1)

	if err := c.SetCodec(nil); !errors.Is(err, ErrNoCodec) {
		t.Fatalf("SetCodec(nil): %v", err)
	}
	if err := c.SetCodec(codec.JSON[string]{}); err != nil {
		t.Fatalf("SetCodec: %v", err)
	}

	f, err := c.Set("j", 0, "quoted")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Get(ctx); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.Get(ctx, "j")
	if err != nil || !ok || v != "quoted" {
		t.Fatalf("round trip after codec swap: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestShutdownFailsPendingWaiters(t *testing.T) {
	c, err := New[string](Options[string]{
		Conn:  &stalledConn{count: 1},
		Codec: codec.String{},
	})
	if err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 1)
	go func() {
		_, _, err := c.Get(context.Background(), "k")
		errs <- err
	}()
	// Let the getter park before shutting down.
	time.Sleep(30 * time.Millisecond)
	c.Shutdown()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrShutdown) {
			t.Fatalf("expected ErrShutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter still blocked after shutdown")
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	c := newTestClient(t, 1)
	c.Shutdown()
	c.Shutdown() // idempotent

	if _, err := c.Set("k", 0, "v"); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Set after shutdown: %v", err)
	}
	if _, _, err := c.Get(context.Background(), "k"); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Get after shutdown: %v", err)
	}
	if err := c.Flush(); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Flush after shutdown: %v", err)
	}
}
