// Package sloghooks reports cache events to a *slog.Logger, with sampling for
// the noisy ones and key redaction.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/stalecache"
)

type Options struct {
	// Sampling to avoid floods during a backend outage; 0/1 = log all.
	ReadSwallowedEvery  uint64
	WriteSwallowedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	readCtr  atomic.Uint64
	writeCtr atomic.Uint64
}

var _ stalecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ReadSwallowed(storageKey string, err error) {
	if h.l == nil || !sample(h.opts.ReadSwallowedEvery, &h.readCtr) {
		return
	}
	h.l.Warn("stalecache.read_swallowed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) WriteSwallowed(storageKey string, err error) {
	if h.l == nil || !sample(h.opts.WriteSwallowedEvery, &h.writeCtr) {
		return
	}
	h.l.Warn("stalecache.write_swallowed",
		"key", h.redact(storageKey),
		"err", err)
}

// RefreshFailed logs at Error only when nobody received the error.
func (h *Hooks) RefreshFailed(storageKey string, err error, delivered bool) {
	if h.l == nil {
		return
	}
	level := slog.LevelError
	if delivered {
		level = slog.LevelDebug
	}
	h.l.Log(context.Background(), level, "stalecache.refresh_failed",
		"key", h.redact(storageKey),
		"delivered", delivered,
		"err", err)
}

func (h *Hooks) BackendCloseFailed(cacheName string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("stalecache.backend_close_failed",
		"cache", cacheName,
		"err", err)
}
