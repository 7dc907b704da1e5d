package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
)

func newTestBigCache(t *testing.T, c codec.Envelope) *BigCache {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Hour, Codec: c})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestBigCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestBigCache(t, nil)

	if env, err := p.Get(ctx, "k"); err != nil || env != nil {
		t.Fatalf("expected miss, got env=%v err=%v", env, err)
	}
	if err := p.Set(ctx, "k", backend.Envelope{FreshUntil: 3, Data: "v"}, backend.SetOptions{}); err != nil {
		t.Fatal(err)
	}
	env, err := p.Get(ctx, "k")
	if err != nil || env == nil {
		t.Fatalf("expected hit, got env=%v err=%v", env, err)
	}
	if env.FreshUntil != 3 || env.Data != "v" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestBigCacheEmbeddedExpiry(t *testing.T) {
	ctx := context.Background()
	p := newTestBigCache(t, codec.Msgpack[backend.Envelope]{})

	if err := p.Set(ctx, "short", backend.Envelope{Data: "x"}, backend.SetOptions{Expire: 30 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if env, _ := p.Get(ctx, "short"); env == nil {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(60 * time.Millisecond)
	if env, _ := p.Get(ctx, "short"); env != nil {
		t.Fatalf("expected miss after expiry")
	}
	// expired record is dropped on read
	if _, err := p.c.Get("short"); err == nil {
		t.Fatalf("expired record was not deleted")
	}
}

func TestBigCacheSelfHealsCorrupt(t *testing.T) {
	ctx := context.Background()
	p := newTestBigCache(t, nil)

	if err := p.c.Set("bad", []byte("not-a-record")); err != nil {
		t.Fatal(err)
	}
	if env, err := p.Get(ctx, "bad"); err != nil || env != nil {
		t.Fatalf("corrupt record should read as miss, got env=%v err=%v", env, err)
	}
	if _, err := p.c.Get("bad"); err == nil {
		t.Fatalf("corrupt record was not deleted")
	}
}

func TestBigCacheUnsetFlushClose(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{LifeWindow: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Unset(ctx, "missing"); err != nil {
		t.Fatalf("Unset of missing key: %v", err)
	}
	_ = p.Set(ctx, "a", backend.Envelope{Data: 1.0}, backend.SetOptions{})
	if err := p.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if env, _ := p.Get(ctx, "a"); env != nil {
		t.Fatalf("flush left entry behind")
	}
	if err := p.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBigCacheDefaultWindowHasNoAgeCeiling(t *testing.T) {
	conf := bigcacheConfig(Config{})
	if conf.LifeWindow != DefaultLifeWindow || conf.LifeWindow < 50*365*24*time.Hour {
		t.Fatalf("life window %v", conf.LifeWindow)
	}
	if conf.CleanWindow != 0 {
		t.Fatalf("periodic clean must be off without a ceiling, got %v", conf.CleanWindow)
	}

	conf = bigcacheConfig(Config{LifeWindow: time.Hour})
	if conf.LifeWindow != time.Hour || conf.CleanWindow == 0 {
		t.Fatalf("explicit ceiling not applied: life=%v clean=%v", conf.LifeWindow, conf.CleanWindow)
	}
	conf = bigcacheConfig(Config{CleanWindow: time.Minute})
	if conf.CleanWindow != time.Minute {
		t.Fatalf("explicit clean window dropped: %v", conf.CleanWindow)
	}

	p, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(context.Background())
	if err := p.Set(context.Background(), "k", backend.Envelope{Data: "v"}, backend.SetOptions{}); err != nil {
		t.Fatal(err)
	}
	if env, _ := p.Get(context.Background(), "k"); env == nil || env.Data != "v" {
		t.Fatalf("entry without expire lost: %+v", env)
	}
}
