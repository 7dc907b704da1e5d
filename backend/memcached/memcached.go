// Package memcached stores envelopes in a memcached-protocol server.
//
// The protocol has no context support; callers bound waiting time with the
// cache's timeout. Expiry is whole seconds: sub-second retention rounds up to
// one second and anything beyond 30 days is sent as an absolute unix time.
package memcached

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
)

const (
	DefaultHost = "127.0.0.1:11211"

	// memcached treats expirations above this many seconds as unix timestamps.
	relativeLimit = 30 * 24 * 60 * 60
)

var ErrNilClient = errors.New("memcached backend: nil client")

// Client is the subset of *memcache.Client the backend uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
	FlushAll() error
}

type Memcached struct {
	c           Client
	codec       codec.Envelope
	closeClient bool
	closeOnce   sync.Once
	now         func() time.Time
}

var (
	_ backend.Backend = (*Memcached)(nil)
	_ backend.Flusher = (*Memcached)(nil)
	_ backend.Closer  = (*Memcached)(nil)
)

type Config struct {
	Client      Client
	CloseClient bool           // set true only if this backend exclusively owns the client
	Codec       codec.Envelope // nil => JSON
}

func New(cfg Config) (*Memcached, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Memcached{
		c:           cfg.Client,
		codec:       codec.OrDefault(cfg.Codec),
		closeClient: cfg.CloseClient,
		now:         time.Now,
	}, nil
}

// Dial opens a client for hosts and returns a backend that owns it.
func Dial(hosts []string, timeout time.Duration, c codec.Envelope) (*Memcached, error) {
	if len(hosts) == 0 {
		hosts = []string{DefaultHost}
	}
	mc := memcache.New(hosts...)
	if timeout > 0 {
		mc.Timeout = timeout
	}
	return New(Config{Client: mc, CloseClient: true, Codec: c})
}

func (p *Memcached) Get(_ context.Context, key string) (*backend.Envelope, error) {
	it, err := p.c.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	env, err := p.codec.Decode(it.Value)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (p *Memcached) Set(_ context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	b, err := p.codec.Encode(env)
	if err != nil {
		return err
	}
	return p.c.Set(&memcache.Item{
		Key:        key,
		Value:      b,
		Expiration: p.expiration(opts.Expire),
	})
}

func (p *Memcached) Unset(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Flush invalidates every item on every server.
func (p *Memcached) Flush(context.Context) error {
	return p.c.FlushAll()
}

// Close releases idle connections when this backend owns the client and the
// client supports it. Safe to call repeatedly.
func (p *Memcached) Close(context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		if !p.closeClient {
			return
		}
		if cl, ok := p.c.(interface{ Close() error }); ok {
			err = cl.Close()
		}
	})
	return err
}

func (p *Memcached) expiration(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	if secs > relativeLimit {
		return int32(p.now().Unix() + secs)
	}
	return int32(secs)
}
