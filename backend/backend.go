// Package backend defines the storage abstraction used by stalecache.
//
// A Backend stores Envelopes. Implementations that keep Go values in process
// (memory, ristretto) store the Envelope as is; byte-oriented stores (redis,
// memcached, bigcache, sqlite) serialize it with a codec.Codec[Envelope]. The
// serialized shape is always the two-field record {"b": freshUntil, "d": value}.
//
// Important: keys handed to a Backend are already prefixed with "<name>:" by the
// owning cache. Flush is backend-global and ignores prefixes.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned by Set when the store dropped the write under pressure.
var ErrRejected = errors.New("backend: write rejected")

// SetOptions carries per-write retention settings.
type SetOptions struct {
	// Expire is how long the backend must keep the entry readable.
	// 0 means retain until unset (or evicted for capacity).
	Expire time.Duration
}

// Backend is the minimal capability every store must provide.
// Must be safe for concurrent use.
type Backend interface {
	// Get returns (env, nil) on hit and (nil, nil) on miss.
	// Errors are reserved for transport/availability failures.
	Get(ctx context.Context, key string) (*Envelope, error)

	// Set stores env under key. When opts.Expire > 0 the entry must be
	// unreadable after that long.
	Set(ctx context.Context, key string, env Envelope, opts SetOptions) error

	// Unset removes key. Removing a missing key is not an error.
	Unset(ctx context.Context, key string) error
}

// Flusher is implemented by backends that can drop every key they hold.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Closer is implemented by backends holding resources.
// Close must be idempotent.
type Closer interface {
	Close(ctx context.Context) error
}
