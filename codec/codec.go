// Package codec serializes envelopes for byte-oriented backends (redis,
// memcached, bigcache, sqlite). In-process backends skip it entirely.
package codec

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/stalecache/backend"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Envelope is the codec shape byte-oriented backends depend on.
type Envelope = Codec[backend.Envelope]

// ByName resolves a codec by its configuration name.
// The empty name selects JSON.
func ByName(name string) (Envelope, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON[backend.Envelope]{}, nil
	case "msgpack":
		return Msgpack[backend.Envelope]{}, nil
	case "cbor":
		return NewCBOR[backend.Envelope](false)
	case "protobuf", "proto":
		return Protobuf{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// OrDefault returns c, or JSON when c is nil.
func OrDefault(c Envelope) Envelope {
	if c == nil {
		return JSON[backend.Envelope]{}
	}
	return c
}
