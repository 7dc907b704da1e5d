// Package stalecache is a read-through, write-behind cache in front of an
// arbitrary key/value store, with stale-while-revalidate reads and
// single-flight recomputation.
//
// Every stored value is wrapped in an envelope carrying a freshness deadline.
// Freshness is separate from expiry: a value past its deadline is stale but
// still served, while the backend drops it only once it expires.
//
//   - Fresh: returned as is.
//   - Stale: returned immediately; one background refresh recomputes it.
//   - Missing: the caller waits for the refresh and gets its result.
//
// Components:
//   - Backend: envelope store with optional expiry (memory, Redis, Memcached,
//     Ristretto, BigCache, SQLite). See package backend.
//   - Codec: serializes envelopes for byte-oriented backends. See package codec.
//   - Registry: named caches, optionally loaded from a YAML Config.
//
// Keys:
//
//	<name>:<key>  - every key is scoped by its cache name
//
// Usage:
//
//	c, _ := stalecache.New(stalecache.Options{
//	    Name:          "user",
//	    BackendConfig: stalecache.BackendConfig{Type: "redis", Codec: "msgpack"},
//	    Defaults:      stalecache.Defaults{FreshFor: time.Minute, Expire: time.Hour},
//	})
//	v, err := c.GetOrElse(ctx, id, func(ctx context.Context) (any, error) {
//	    return loadUser(ctx, id)
//	})
//
// Single-flight is per Cache within one process; there is no cross-process
// coordination.
package stalecache
