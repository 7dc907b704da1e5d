// Package bigcache keeps serialized envelopes in an allegro/bigcache shard set.
//
// BigCache only has a global life window, so per-entry expiry is embedded in
// an internal/wire record and enforced on read. A configured LifeWindow acts
// as a hard ceiling on retention, including for entries written without an
// expire. Left at 0, the window is DefaultLifeWindow and the periodic clean
// is off, so such entries are only dropped for capacity.
package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
	"github.com/unkn0wn-root/stalecache/internal/wire"
)

// DefaultLifeWindow is the life window used when Config.LifeWindow is 0.
// It is long enough that age never evicts an entry.
const DefaultLifeWindow = 100 * 365 * 24 * time.Hour

type BigCache struct {
	c         *bc.BigCache
	codec     codec.Envelope
	closeOnce sync.Once
	closeErr  error
}

var (
	_ backend.Backend = (*BigCache)(nil)
	_ backend.Flusher = (*BigCache)(nil)
	_ backend.Closer  = (*BigCache)(nil)
)

type Config struct {
	LifeWindow         time.Duration // 0 => DefaultLifeWindow (no age ceiling)
	CleanWindow        time.Duration // 0 => bigcache default; off when LifeWindow is 0
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Codec              codec.Envelope
}

func New(cfg Config) (*BigCache, error) {
	c, err := bc.NewBigCache(bigcacheConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c, codec: codec.OrDefault(cfg.Codec)}, nil
}

func bigcacheConfig(cfg Config) bc.Config {
	ceiling := cfg.LifeWindow > 0
	if !ceiling {
		cfg.LifeWindow = DefaultLifeWindow
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	switch {
	case cfg.CleanWindow > 0:
		conf.CleanWindow = cfg.CleanWindow
	case !ceiling:
		conf.CleanWindow = 0
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	return conf
}

func (p *BigCache) Get(_ context.Context, key string) (*backend.Envelope, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	exp, payload, err := wire.DecodeRecord(b)
	if err != nil {
		_ = p.c.Delete(key) // self-heal corrupt
		return nil, nil
	}
	if wire.Expired(exp, time.Now()) {
		_ = p.c.Delete(key)
		return nil, nil
	}
	env, err := p.codec.Decode(payload)
	if err != nil {
		_ = p.c.Delete(key)
		return nil, nil
	}
	return &env, nil
}

func (p *BigCache) Set(_ context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	payload, err := p.codec.Encode(env)
	if err != nil {
		return err
	}
	return p.c.Set(key, wire.EncodeRecord(wire.ExpireAt(time.Now(), opts.Expire), payload))
}

func (p *BigCache) Unset(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *BigCache) Flush(context.Context) error {
	return p.c.Reset()
}

func (p *BigCache) Close(context.Context) error {
	p.closeOnce.Do(func() { p.closeErr = p.c.Close() })
	return p.closeErr
}
