// Package ristretto keeps envelopes in an in-process ristretto cache.
// Values are stored natively; expiry uses ristretto's per-entry TTL.
package ristretto

import (
	"context"
	"errors"
	"sync"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/stalecache/backend"
)

type Ristretto struct {
	c         *rc.Cache
	closeOnce sync.Once
}

var (
	_ backend.Backend = (*Ristretto)(nil)
	_ backend.Flusher = (*Ristretto)(nil)
	_ backend.Closer  = (*Ristretto)(nil)
)

type Config struct {
	NumCounters int64 // 0 => 10 * MaxCost
	MaxCost     int64 // every entry costs 1, so this is the entry capacity
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Ristretto, error) {
	if cfg.MaxCost <= 0 {
		return nil, errors.New("ristretto: MaxCost must be positive")
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxCost * 10
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

func (p *Ristretto) Get(_ context.Context, key string) (*backend.Envelope, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, nil
	}
	env, ok := v.(backend.Envelope)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, nil
	}
	return &env, nil
}

// Set writes through ristretto's buffers and waits for them to drain so the
// entry is visible to the next Get. A write dropped by the buffers yields
// backend.ErrRejected.
func (p *Ristretto) Set(_ context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	ttl := opts.Expire
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, env, 1, ttl) {
		return backend.ErrRejected
	}
	p.c.Wait()
	return nil
}

func (p *Ristretto) Unset(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Ristretto) Flush(context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Ristretto) Close(context.Context) error {
	p.closeOnce.Do(func() {
		p.c.Wait()
		p.c.Close()
	})
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics is set).
func (p *Ristretto) Metrics() *rc.Metrics { return p.c.Metrics }
