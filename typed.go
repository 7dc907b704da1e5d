package stalecache

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// GetAs is Get with the result converted to V. A missing key yields V's
// zero value.
func GetAs[V any](ctx context.Context, c *Cache, key string) (V, error) {
	v, err := c.Get(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return as[V](v)
}

// GetOrElseAs is GetOrElse with a typed producer and result.
// A nil pointer from fn is stored as an absent value.
func GetOrElseAs[V any](ctx context.Context, c *Cache, key string, fn func(context.Context) (V, error), opts ...CallOption) (V, error) {
	v, err := c.GetOrElse(ctx, key, Producer(func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return normalizeNil(v), nil
	}), opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	return as[V](v)
}

// as converts a cached value to V. In-process backends hand back the value
// that was stored; serializing backends hand back its decoded generic shape
// (maps, slices, float64), which is re-encoded into V honoring json tags.
func as[V any](v any) (V, error) {
	var out V
	if v == nil {
		return out, nil
	}
	if typed, ok := v.(V); ok {
		return typed, nil
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return out, fmt.Errorf("stalecache: cannot convert %T to %T: %w", v, out, err)
	}
	dec := msgpack.NewDecoder(&buf)
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("stalecache: cannot convert %T to %T: %w", v, out, err)
	}
	return out, nil
}
