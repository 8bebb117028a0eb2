// Package memshard is a client to a cluster of independent cache
// servers addressed by key. Keys route to connections through a pure
// hash; every network exchange is an asynchronous operation whose
// completion callback publishes into a blocking cell, so application
// goroutines get plain synchronous calls (with or without timeout) over
// an IO loop they never touch.
//
// Components:
//   - conn.Manager: owns the connection set and the IO pump (one
//     connection per server, index-stable, FIFO per index).
//   - ops: the operation family the manager executes (store, get,
//     delete, flush, version, stats, mutator).
//   - codec.Codec[V]: (de)serializes V <-> flagged byte payloads.
//
// Call shapes:
//
//	f, _ := client.Set("k", 0, v)          // future, resolves to a status token
//	st, _ := f.GetTimeout(ctx, time.Second)
//	v, ok, _ := client.Get(ctx, "k")       // blocking single get; ok=false on miss
//	m, _ := client.GetMulti(ctx, keys)     // fan-out by connection, found keys only
//	vs, _ := client.Versions(ctx)          // one entry per connection address
//
// Routing is stable only while the connection count is unchanged; there
// is no consistent hashing and no rehashing when the cluster size
// changes. Increment-with-default is a mutate-then-add pair, not an
// atomic primitive; a concurrent creator can win the window in between.
package memshard
