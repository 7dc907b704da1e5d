// Package redis stores envelopes in a Redis-protocol server. Expiry uses the
// server's native per-key TTL.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
)

var ErrNilClient = errors.New("redis backend: nil client")

const DefaultAddr = "127.0.0.1:6379"

type Redis struct {
	rdb         goredis.UniversalClient
	codec       codec.Envelope
	closeClient bool
}

var (
	_ backend.Backend = (*Redis)(nil)
	_ backend.Flusher = (*Redis)(nil)
	_ backend.Closer  = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool           // set true only if this backend exclusively owns the client
	Codec       codec.Envelope // nil => JSON
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, codec: codec.OrDefault(cfg.Codec), closeClient: cfg.CloseClient}, nil
}

// Dial opens a client for addrs (a single address, or several for a cluster)
// and returns a backend that owns it.
func Dial(addrs []string, password string, db int, c codec.Envelope) (*Redis, error) {
	if len(addrs) == 0 {
		addrs = []string{DefaultAddr}
	}
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
		DB:       db,
	})
	return New(Config{Client: client, CloseClient: true, Codec: c})
}

func (p *Redis) Get(ctx context.Context, key string) (*backend.Envelope, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil // miss
	}
	if err != nil {
		return nil, err // transport/server error
	}
	env, err := p.codec.Decode(b)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (p *Redis) Set(ctx context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	b, err := p.codec.Encode(env)
	if err != nil {
		return err
	}
	ttl := opts.Expire
	if ttl < 0 {
		ttl = 0 // non-positive => no expiry
	}
	return p.rdb.Set(ctx, key, b, ttl).Err()
}

func (p *Redis) Unset(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Flush drops every key in the selected database.
func (p *Redis) Flush(ctx context.Context) error {
	return p.rdb.FlushDB(ctx).Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
