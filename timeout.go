package stalecache

import (
	"context"
	"time"
)

type result[T any] struct {
	v   T
	err error
}

// withTimeout runs op, giving up after d. d <= 0 runs op inline.
// A timed-out op is not cancelled: it keeps running and its result is
// dropped into the buffered channel.
func withTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return op(ctx)
	}

	ch := make(chan result[T], 1)
	go func() {
		v, err := op(ctx)
		ch <- result[T]{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-ch:
		return r.v, r.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
