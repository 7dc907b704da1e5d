package backend

import "time"

// Envelope pairs a cached value with its freshness deadline.
//
// FreshUntil is a unix timestamp in milliseconds; 0 means the value never
// goes stale. Data is the value itself; nil is the "absent" value.
type Envelope struct {
	FreshUntil int64 `json:"b" msgpack:"b" cbor:"b"`
	Data       any   `json:"d" msgpack:"d" cbor:"d"`
}

// Deadline converts a freshness duration into an absolute deadline.
// Zero and negative durations yield 0 ("never stale"). Sub-millisecond
// precision is truncated.
func Deadline(d time.Duration) int64 {
	return deadlineAt(time.Now(), d)
}

func deadlineAt(now time.Time, d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return now.UnixMilli() + d.Milliseconds()
}

// Wrap builds an Envelope for v that becomes stale after freshFor.
func Wrap(v any, freshFor time.Duration) Envelope {
	return Envelope{FreshUntil: Deadline(freshFor), Data: v}
}

// Stale reports whether the envelope's freshness deadline has passed.
// A nil envelope and a zero deadline are never stale.
func (e *Envelope) Stale(now time.Time) bool {
	if e == nil || e.FreshUntil == 0 {
		return false
	}
	return now.UnixMilli() > e.FreshUntil
}

// Value returns the wrapped value, or nil when e is nil.
// Callers cannot tell a missing envelope from one holding nil.
func (e *Envelope) Value() any {
	if e == nil {
		return nil
	}
	return e.Data
}
