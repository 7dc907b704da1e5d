package stalecache

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/stalecache/backend"
)

// Cache is a named view over one backend. Keys are prefixed with the cache
// name so caches sharing a backend never collide.
//
// A Cache is safe for concurrent use.
type Cache struct {
	name    string
	prefix  string
	log     Logger
	hooks   Hooks
	flights *flights

	mu       sync.RWMutex
	backend  backend.Backend
	defaults Defaults
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Backend() backend.Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend
}

func (c *Cache) Defaults() Defaults {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// SetDefaults replaces the cache defaults for subsequent calls.
func (c *Cache) SetDefaults(d Defaults) {
	c.mu.Lock()
	c.defaults = d
	c.mu.Unlock()
}

// SetBackend installs b and closes the previous backend best-effort.
// Refreshes already running write to b once they finish.
func (c *Cache) SetBackend(ctx context.Context, b backend.Backend) error {
	if b == nil {
		return ErrNilBackend
	}
	c.mu.Lock()
	old := c.backend
	c.backend = b
	c.mu.Unlock()

	if old == nil || old == b {
		return nil
	}
	if cl, ok := old.(backend.Closer); ok {
		if err := cl.Close(ctx); err != nil {
			c.log.Warn("closing replaced backend failed", Fields{"name": c.name, "err": err})
			c.hooks.BackendCloseFailed(c.name, err)
		}
	}
	return nil
}

// Close closes the backend if it holds resources.
func (c *Cache) Close(ctx context.Context) error {
	if cl, ok := c.Backend().(backend.Closer); ok {
		return cl.Close(ctx)
	}
	return nil
}

// Get returns the stored value, or nil when the key is missing or expired.
// A stale value is returned as is. Backend failures are returned.
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	b, d := c.state()
	env, err := c.read(ctx, b, d.Timeout, c.key(key))
	if err != nil {
		return nil, err
	}
	return env.Value(), nil
}

// Set stores the value of valueOrFn under key. valueOrFn is either a literal
// or a function (see GetOrElse) invoked once before writing.
func (c *Cache) Set(ctx context.Context, key string, valueOrFn any, opts ...CallOption) error {
	o := c.Defaults().merge(opts)
	v, err := produce(ctx, valueOrFn)
	if err != nil {
		return err
	}
	return c.write(ctx, c.key(key), v, o)
}

// Unset removes key. Removing a missing key is not an error.
func (c *Cache) Unset(ctx context.Context, key string) error {
	b, d := c.state()
	k := c.key(key)
	_, err := withTimeout(ctx, d.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.Unset(ctx, k)
	})
	return opErr("unset", k, err)
}

// Flush drops every key in the backend, including keys of other caches
// sharing it. It is a no-op for backends that cannot flush.
func (c *Cache) Flush(ctx context.Context) error {
	b, d := c.state()
	fl, ok := b.(backend.Flusher)
	if !ok {
		c.log.Debug("flush unsupported by backend", Fields{"name": c.name})
		return nil
	}
	_, err := withTimeout(ctx, d.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fl.Flush(ctx)
	})
	return opErr("flush", "", err)
}

func (c *Cache) key(k string) string { return c.prefix + k }

func (c *Cache) state() (backend.Backend, Defaults) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend, c.defaults
}

func (c *Cache) read(ctx context.Context, b backend.Backend, timeout time.Duration, k string) (*backend.Envelope, error) {
	env, err := withTimeout(ctx, timeout, func(ctx context.Context) (*backend.Envelope, error) {
		return b.Get(ctx, k)
	})
	if err != nil {
		return nil, opErr("get", k, err)
	}
	return env, nil
}

// write stores v with the backend current at call time.
func (c *Cache) write(ctx context.Context, k string, v any, o callOptions) error {
	b, d := c.state()
	env := backend.Wrap(v, o.freshFor)
	_, err := withTimeout(ctx, d.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.Set(ctx, k, env, backend.SetOptions{Expire: o.expire})
	})
	return opErr("set", k, err)
}
