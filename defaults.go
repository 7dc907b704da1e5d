package stalecache

import "time"

// DefaultName is the cache name used when Options.Name is empty.
const DefaultName = "default"

// Defaults are the per-cache settings applied when a call does not
// override them. Zero means "never stale", "never expire" and "no timeout".
type Defaults struct {
	FreshFor time.Duration // how long a written value stays fresh
	Expire   time.Duration // how long the backend keeps it readable
	Timeout  time.Duration // bound on every backend call
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// CallOption overrides a cache default for a single Set or GetOrElse call.
type CallOption func(*callOptions)

type callOptions struct {
	freshFor time.Duration
	expire   time.Duration
}

// WithFreshFor sets how long the written value stays fresh. 0 means it never
// goes stale, even when the cache default is non-zero.
func WithFreshFor(d time.Duration) CallOption {
	return func(o *callOptions) { o.freshFor = d }
}

// WithExpire sets how long the backend keeps the written value. 0 means it
// is kept until unset.
func WithExpire(d time.Duration) CallOption {
	return func(o *callOptions) { o.expire = d }
}

func (d Defaults) merge(opts []CallOption) callOptions {
	o := callOptions{freshFor: d.FreshFor, expire: d.Expire}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
