package stalecache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/stalecache/backend"
)

// Producer computes a value for a key on a miss or a stale read.
// It runs detached from the caller's cancellation.
type Producer func(ctx context.Context) (any, error)

// Options configure a Cache. Everything is optional.
type Options struct {
	// Name scopes keys: every key is stored as "<Name>:<key>". "" => DefaultName.
	Name string

	// Backend is used as is when set. Otherwise one is built from
	// BackendConfig (the zero value selects an in-process memory store).
	Backend       backend.Backend
	BackendConfig BackendConfig

	Defaults Defaults
	Logger   Logger // if nil, NopLogger is used
	Hooks    Hooks  // if nil, NopHooks is used
}

// New builds a Cache from opts.
func New(opts Options) (*Cache, error) {
	return NewContext(context.Background(), opts)
}

// NewContext is New with ctx bounding backend construction (dialing,
// schema migration). Cancelling ctx later does not affect the cache.
func NewContext(ctx context.Context, opts Options) (*Cache, error) {
	b := opts.Backend
	if b == nil {
		var err error
		b, err = NewBackend(ctx, opts.BackendConfig)
		if err != nil {
			return nil, err
		}
	}

	name := coalesce(opts.Name, DefaultName)
	c := &Cache{
		name:     name,
		prefix:   name + ":",
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		flights:  newFlights(),
		backend:  b,
		defaults: opts.Defaults,
	}
	c.log.Debug("cache created", Fields{"name": name, "backend": fmt.Sprintf("%T", b)})
	return c, nil
}
