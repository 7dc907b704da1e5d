// Package wire frames envelope payloads for stores that have no per-entry TTL.
// The frame carries the hard expiry so it can be enforced on read.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("stalecache: corrupt record")
	magic4     = [...]byte{'S', 'T', 'L', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record: magic(4) | ver(1) | expireAt(u64 be, unix ms, 0 = never) | plen(u32 be) | payload(plen)
func EncodeRecord(expireAt int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expireAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeRecord parses a record. The payload aliases b.
func DecodeRecord(b []byte) (expireAt int64, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	off := 5

	expireAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if expireAt < 0 {
		return 0, nil, ErrCorrupt
	}

	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off { // strict framing: no short reads, no trailing bytes
		return 0, nil, ErrCorrupt
	}
	return expireAt, b[off:], nil
}

// ExpireAt converts a retention duration into a record deadline.
func ExpireAt(now time.Time, d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return now.Add(d).UnixMilli()
}

// Expired reports whether a record deadline has passed.
func Expired(expireAt int64, now time.Time) bool {
	return expireAt != 0 && now.UnixMilli() >= expireAt
}
