package proto

import (
	"errors"
	"io"
)

// Wire helpers for the server list ping exchange. Frames and strings are
// length-prefixed with the protocol's 7-bit little-endian varint form.

const maxVarIntBytes = 5

var errVarIntTooLong = errors.New("varint exceeds 5 bytes")

func appendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for {
		if u&^0x7F == 0 {
			return append(b, byte(u))
		}
		b = append(b, byte(u&0x7F|0x80))
		u >>= 7
	}
}

func readVarInt(r io.Reader) (int32, error) {
	var (
		result uint32
		buf    [1]byte
	)
	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		result |= uint32(buf[0]&0x7F) << (7 * i)
		if buf[0]&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, errVarIntTooLong
}

func appendString(b []byte, s string) []byte {
	b = appendVarInt(b, int32(len(s)))
	return append(b, s...)
}
