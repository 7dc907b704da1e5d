package stalecache

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// GetOrElse returns the value stored under key, computing it with valueOrFn
// when it is missing or stale.
//
// valueOrFn is either a literal value or a function called to produce it:
// func() T, func() (T, error), func(context.Context) T or
// func(context.Context) (T, error), including Producer and other named func
// types. Any other func yields ErrUnsupportedProducer.
//
//   - Fresh: the stored value is returned.
//   - Stale: the stored value is returned and one background refresh starts.
//   - Missing: the caller waits for the refresh (or ctx) and gets its result.
//
// At most one refresh per key runs at a time within this Cache; concurrent
// callers on a miss share its result. A refresh keeps running when the
// caller's ctx is cancelled. Backend failures never reach the caller: a
// failed read is a miss, a failed refresh write is logged. A producer error
// is returned to callers waiting on that refresh, and only logged when every
// caller got a stale value instead.
func (c *Cache) GetOrElse(ctx context.Context, key string, valueOrFn any, opts ...CallOption) (any, error) {
	k := c.key(key)
	b, d := c.state()
	o := d.merge(opts)

	env, err := c.read(ctx, b, d.Timeout, k)
	if err != nil {
		c.log.Warn("read failed; treating as miss", Fields{"key": k, "err": err})
		c.hooks.ReadSwallowed(k, err)
		env = nil
	}

	data := env.Value()
	refresh := env == nil || env.Stale(time.Now())
	f, started := c.flights.begin(k, refresh, data == nil)
	if started {
		c.log.Debug("refresh started", Fields{"key": k, "stale": env != nil})
		go c.refresh(context.WithoutCancel(ctx), k, f, valueOrFn, o)
	}

	if data != nil || f == nil {
		return data, nil
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context, k string, f *flight, valueOrFn any, o callOptions) {
	v, err := produce(ctx, valueOrFn)
	if err != nil {
		v = nil
	} else if werr := c.write(ctx, k, v, o); werr != nil {
		c.log.Warn("refresh write failed", Fields{"key": k, "err": werr})
		c.hooks.WriteSwallowed(k, werr)
	}

	delivered := c.flights.finish(k, f, v, err)
	switch {
	case err == nil:
		c.log.Debug("refresh done", Fields{"key": k})
	case delivered:
		c.log.Debug("refresh failed", Fields{"key": k, "err": err})
		c.hooks.RefreshFailed(k, err, true)
	default:
		c.log.Warn("refresh failed with no caller waiting", Fields{"key": k, "err": err})
		c.hooks.RefreshFailed(k, err, false)
	}
}

// produce resolves valueOrFn, turning a producer panic into an error.
// A nil pointer result is normalized to nil.
func produce(ctx context.Context, valueOrFn any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()

	v, err = invoke(ctx, valueOrFn)
	if err != nil {
		return nil, err
	}
	return normalizeNil(v), nil
}

func invoke(ctx context.Context, valueOrFn any) (any, error) {
	switch fn := valueOrFn.(type) {
	case Producer:
		return fn(ctx)
	case func(context.Context) (any, error):
		return fn(ctx)
	case func() (any, error):
		return fn()
	case func() any:
		return fn(), nil
	}

	rv := reflect.ValueOf(valueOrFn)
	if rv.Kind() != reflect.Func {
		return valueOrFn, nil
	}
	return callFunc(ctx, rv)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// callFunc invokes any other func shaped func() T, func() (T, error),
// func(context.Context) T or func(context.Context) (T, error).
func callFunc(ctx context.Context, fn reflect.Value) (any, error) {
	t := fn.Type()
	if fn.IsNil() || t.IsVariadic() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProducer, t)
	}

	var in []reflect.Value
	switch {
	case t.NumIn() == 0:
	case t.NumIn() == 1 && t.In(0) == contextType:
		in = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProducer, t)
	}

	switch {
	case t.NumOut() == 1 && t.Out(0) != errorType:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProducer, t)
	}

	out := fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func normalizeNil(v any) any {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return v
}
