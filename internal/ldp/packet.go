// Package ldp implements the L4 datagram protocol (LDP): a typed, checksummed
// datagram carried inside each reassembled OP payload.
package ldp

import (
	"errors"

	"github.com/go-outernet/receiver/internal/crc32mpeg2"
)

const (
	headerLen   = 4 // type(1) + length(3), one 32-bit big-endian word
	trailerLen  = 4 // CRC-32/MPEG-2
	overheadLen = headerLen + trailerLen
)

var (
	// ErrMalformedShort is returned when a datagram is too short to hold a
	// header and trailer.
	ErrMalformedShort = errors.New("ldp: datagram shorter than header+trailer")
	// ErrMalformedLength is returned when the header's length field exceeds
	// the actual datagram size.
	ErrMalformedLength = errors.New("ldp: length field mismatch")
	// ErrMalformedCRC is returned when the trailing checksum does not
	// validate against the rest of the datagram.
	ErrMalformedCRC = errors.New("ldp: checksum mismatch")
)

// Packet is one parsed LDP datagram.
type Packet struct {
	Type    uint8
	Payload []byte
}

// Parse decodes and validates an LDP datagram. The header's 24-bit length
// field must not exceed data's actual size — excess trailing bytes beyond
// it are permitted (common when the underlying L4 carrier is padded) — and
// the 4-byte checksum trailing the declared length must be the
// CRC-32/MPEG-2 of everything preceding it.
func Parse(data []byte) (Packet, error) {
	if len(data) < overheadLen {
		return Packet{}, ErrMalformedShort
	}
	declared := uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	if declared > uint32(len(data)) {
		return Packet{}, ErrMalformedLength
	}
	data = data[:declared]

	// CRC-32/MPEG-2 has Residue=0x00000000: a message followed by its own
	// correctly computed trailer checksums to zero in a single pass.
	if crc32mpeg2.Checksum(data) != 0 {
		return Packet{}, ErrMalformedCRC
	}

	return Packet{
		Type:    data[0],
		Payload: data[headerLen : len(data)-trailerLen],
	}, nil
}

// Build encodes an LDP datagram with the given type and payload, computing
// the 24-bit length field and CRC-32/MPEG-2 trailer.
func Build(typ uint8, payload []byte) []byte {
	total := overheadLen + len(payload)
	out := make([]byte, headerLen+len(payload), total)
	out[0] = typ
	out[1] = byte(total >> 16)
	out[2] = byte(total >> 8)
	out[3] = byte(total)
	copy(out[headerLen:], payload)

	trailer := crc32mpeg2.Checksum(out)
	out = append(out, byte(trailer>>24), byte(trailer>>16), byte(trailer>>8), byte(trailer))
	return out
}
