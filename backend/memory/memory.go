// Package memory is the in-process reference backend. Envelopes are kept as
// Go values; nothing is serialized.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/stalecache/backend"
)

type entry struct {
	env backend.Envelope
	exp time.Time // zero => no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// Memory is a map-backed store with lazy expiry on read and an optional
// background sweep.
type Memory struct {
	mu sync.Mutex
	m  map[string]entry

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ backend.Backend = (*Memory)(nil)
	_ backend.Flusher = (*Memory)(nil)
	_ backend.Closer  = (*Memory)(nil)
)

type Config struct {
	// SweepInterval enables a background loop dropping expired entries.
	// 0 disables it; expired entries are then only dropped on read.
	SweepInterval time.Duration
}

func New(cfg Config) *Memory {
	s := &Memory{m: make(map[string]entry)}
	if cfg.SweepInterval > 0 {
		s.ticker = time.NewTicker(cfg.SweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

func (s *Memory) Get(_ context.Context, key string) (*backend.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	if e.expired(time.Now()) {
		delete(s.m, key)
		return nil, nil
	}
	env := e.env
	return &env, nil
}

func (s *Memory) Set(_ context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	var exp time.Time
	if opts.Expire > 0 {
		exp = time.Now().Add(opts.Expire)
	}
	s.mu.Lock()
	s.m[key] = entry{env: env, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Unset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Flush(context.Context) error {
	s.mu.Lock()
	s.m = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Close stops the sweep loop. Data stays readable; safe to call repeatedly.
func (s *Memory) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

func (s *Memory) sweepLoop() {
	defer s.wg.Done()
	for {
		select {
		case now := <-s.ticker.C:
			s.sweep(now)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Memory) sweep(now time.Time) {
	s.mu.Lock()
	for k, e := range s.m {
		if e.expired(now) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}
