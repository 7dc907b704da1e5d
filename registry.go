package stalecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds named caches. The zero value is not usable; use NewRegistry.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*Cache
}

func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*Cache)}
}

// NewRegistryFromConfig creates one cache per entry of cfg. base supplies the
// logger and hooks shared by every cache; its Name, Backend, BackendConfig and
// Defaults are ignored. On failure the caches created so far are closed.
func NewRegistryFromConfig(ctx context.Context, cfg *Config, base Options) (*Registry, error) {
	r := NewRegistry()
	if cfg == nil {
		return r, nil
	}

	names := make([]string, 0, len(cfg.Caches))
	for name := range cfg.Caches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cc := cfg.Caches[name]
		opts := base
		opts.Name = name
		opts.Backend = nil
		opts.BackendConfig = cc.Backend
		opts.Defaults = cc.Defaults()
		if _, err := r.Create(ctx, opts); err != nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
	}
	return r, nil
}

// Create builds a cache named opts.Name. A taken name yields ErrCacheExists.
// The backend is built without holding the registry lock.
func (r *Registry) Create(ctx context.Context, opts Options) (*Cache, error) {
	name := coalesce(opts.Name, DefaultName)
	if _, ok := r.Get(name); ok {
		return nil, fmt.Errorf("%w: %q", ErrCacheExists, name)
	}
	opts.Name = name
	c, err := NewContext(ctx, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	_, taken := r.caches[name]
	if !taken {
		r.caches[name] = c
	}
	r.mu.Unlock()

	if taken {
		r.discard(ctx, c, opts)
		return nil, fmt.Errorf("%w: %q", ErrCacheExists, name)
	}
	return c, nil
}

// Cache returns the cache named name, creating it from opts when absent.
// opts.Name is ignored. An existing cache is returned unchanged; when two
// callers create the same name at once, both get the first registered.
func (r *Registry) Cache(ctx context.Context, name string, opts Options) (*Cache, error) {
	name = coalesce(name, DefaultName)
	if c, ok := r.Get(name); ok {
		return c, nil
	}
	opts.Name = name
	c, err := NewContext(ctx, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	existing, taken := r.caches[name]
	if !taken {
		r.caches[name] = c
	}
	r.mu.Unlock()

	if taken {
		r.discard(ctx, c, opts)
		return existing, nil
	}
	return c, nil
}

// discard closes a cache that lost a registration race, unless its backend
// was supplied by the caller.
func (r *Registry) discard(ctx context.Context, c *Cache, opts Options) {
	if opts.Backend != nil {
		return
	}
	if err := c.Close(ctx); err != nil {
		c.log.Warn("closing unregistered cache failed", Fields{"name": c.name, "err": err})
	}
}

// Get returns the cache named name, if registered.
func (r *Registry) Get(name string) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[coalesce(name, DefaultName)]
	return c, ok
}

// Drop forgets the cache named name without closing it.
// It reports whether the name was registered.
func (r *Registry) Drop(name string) bool {
	name = coalesce(name, DefaultName)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.caches[name]
	delete(r.caches, name)
	return ok
}

// DropAll forgets every cache without closing them.
func (r *Registry) DropAll() {
	r.mu.Lock()
	r.caches = make(map[string]*Cache)
	r.mu.Unlock()
}

// Names lists the registered cache names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.caches))
	for name := range r.caches {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every registered cache and forgets them. A backend shared by
// several caches is closed once per cache, so backends must tolerate
// repeated Close.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]*Cache)
	r.mu.Unlock()

	var errs []error
	for name, c := range caches {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
