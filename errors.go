package stalecache

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned (wrapped in *OpError) when a backend call does
	// not settle within the cache's Timeout.
	ErrTimeout = errors.New("stalecache: backend call timed out")

	// ErrProducerPanic wraps a panic recovered from a value producer.
	ErrProducerPanic = errors.New("stalecache: producer panicked")

	// ErrCacheExists is returned by Registry.Create for a taken name.
	ErrCacheExists = errors.New("stalecache: cache already exists")

	// ErrUnsupportedProducer is returned for a func valueOrFn whose
	// signature cannot be called to produce a value.
	ErrUnsupportedProducer = errors.New("stalecache: unsupported producer signature")

	ErrNilBackend = errors.New("stalecache: nil backend")
)

// OpError records a failed backend operation and the storage key involved.
type OpError struct {
	Op  string // "get", "set", "unset", "flush"
	Key string // storage key; empty for flush
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stalecache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stalecache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// ConfigError reports a backend configuration that cannot be satisfied,
// typically an unknown backend type.
type ConfigError struct {
	Type string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stalecache: unknown backend type %q", e.Type)
	}
	return fmt.Sprintf("stalecache: backend %q: %v", e.Type, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func opErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Key: key, Err: err}
}
