// Package asynchook moves hook delivery off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ReadSwallowedEvery: 10, // sample logs: ~every 10th swallowed read
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := stalecache.New(stalecache.Options{
//	    Name:          "user",
//	    BackendConfig: stalecache.BackendConfig{Type: "redis"},
//	    Hooks:         hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/stalecache"
)

type Hooks struct {
	inner   stalecache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ stalecache.Hooks = (*Hooks)(nil)

func New(inner stalecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full
// or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) ReadSwallowed(k string, err error)  { h.try(func() { h.inner.ReadSwallowed(k, err) }) }
func (h *Hooks) WriteSwallowed(k string, err error) { h.try(func() { h.inner.WriteSwallowed(k, err) }) }
func (h *Hooks) RefreshFailed(k string, err error, delivered bool) {
	h.try(func() { h.inner.RefreshFailed(k, err, delivered) })
}
func (h *Hooks) BackendCloseFailed(name string, err error) {
	h.try(func() { h.inner.BackendCloseFailed(name, err) })
}
