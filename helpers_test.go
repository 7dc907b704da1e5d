package stalecache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/backend/memory"
)

// fakeBackend is an in-memory backend with injectable latency and failures.
type fakeBackend struct {
	mu sync.Mutex
	m  map[string]backend.Envelope

	getDelay time.Duration
	setDelay time.Duration
	getErr   error
	setErr   error
	closeErr error

	sets   int
	closed int
}

var (
	_ backend.Backend = (*fakeBackend)(nil)
	_ backend.Closer  = (*fakeBackend)(nil)
)

func newFakeBackend() *fakeBackend { return &fakeBackend{m: make(map[string]backend.Envelope)} }

func (b *fakeBackend) Get(_ context.Context, key string) (*backend.Envelope, error) {
	time.Sleep(b.getDelay)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	env, ok := b.m[key]
	if !ok {
		return nil, nil
	}
	return &env, nil
}

func (b *fakeBackend) Set(_ context.Context, key string, env backend.Envelope, _ backend.SetOptions) error {
	time.Sleep(b.setDelay)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return b.setErr
	}
	b.sets++
	b.m[key] = env
	return nil
}

func (b *fakeBackend) Unset(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Close(context.Context) error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return b.closeErr
}

func (b *fakeBackend) stored(key string) (backend.Envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	env, ok := b.m[key]
	return env, ok
}

func (b *fakeBackend) put(key string, env backend.Envelope) {
	b.mu.Lock()
	b.m[key] = env
	b.mu.Unlock()
}

type refreshEvent struct {
	key       string
	err       error
	delivered bool
}

// recHooks records hook events on buffered channels.
type recHooks struct {
	reads    chan string
	writes   chan string
	refresh  chan refreshEvent
	closeErr chan error
}

var _ Hooks = (*recHooks)(nil)

func newRecHooks() *recHooks {
	return &recHooks{
		reads:    make(chan string, 64),
		writes:   make(chan string, 64),
		refresh:  make(chan refreshEvent, 64),
		closeErr: make(chan error, 64),
	}
}

func (h *recHooks) ReadSwallowed(k string, _ error)  { h.reads <- k }
func (h *recHooks) WriteSwallowed(k string, _ error) { h.writes <- k }
func (h *recHooks) RefreshFailed(k string, err error, delivered bool) {
	h.refresh <- refreshEvent{key: k, err: err, delivered: delivered}
}
func (h *recHooks) BackendCloseFailed(_ string, err error) { h.closeErr <- err }

func newTestCache(t *testing.T, b backend.Backend, optsOpt func(*Options)) *Cache {
	t.Helper()
	if b == nil {
		b = memory.New(memory.Config{})
	}
	opts := Options{Name: "test", Backend: b}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
