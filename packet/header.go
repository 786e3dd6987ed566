// Package packet defines the relay wire format: a fixed-size frame header,
// the Packet codec interface, and a registry mapping packet-type
// discriminators to their codecs. Every frame on the wire is
// [header][body] with no delimiter; the body length is always explicit
// in the header.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// HeaderSize is the fixed byte length of every frame header:
// 16 bytes sender UUID, 2 bytes packet type (big-endian),
// 4 bytes body size (big-endian).
const HeaderSize = 16 + 2 + 4

// MaxBodySize caps the body length a header may declare. Frames claiming
// more are treated as a protocol violation by the reader.
const MaxBodySize = 1 << 20

// ErrShortHeader is returned when a byte slice is too small to hold a header.
var ErrShortHeader = errors.New("packet: buffer smaller than header size")

// Header is the fixed-layout frame header transmitted before every body.
// The zero UUID is reserved for server-originated frames.
type Header struct {
	Sender   uuid.UUID
	Type     uint16
	BodySize uint32
}

// ParseHeader decodes a Header from the first HeaderSize bytes of b.
//
// Parameters:
//   - b: Raw bytes; must be at least HeaderSize long
//
// Returns:
//   - The decoded Header, or ErrShortHeader if b is too small
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}

	var h Header
	copy(h.Sender[:], b[:16])
	h.Type = binary.BigEndian.Uint16(b[16:18])
	h.BodySize = binary.BigEndian.Uint32(b[18:22])
	return h, nil
}

// Put encodes the header into the first HeaderSize bytes of b.
//
// Parameters:
//   - b: Destination slice; must be at least HeaderSize long
//
// Returns:
//   - ErrShortHeader if b is too small
func (h Header) Put(b []byte) error {
	if len(b) < HeaderSize {
		return ErrShortHeader
	}

	copy(b[:16], h.Sender[:])
	binary.BigEndian.PutUint16(b[16:18], h.Type)
	binary.BigEndian.PutUint32(b[18:22], h.BodySize)
	return nil
}

// Encode builds a complete frame (header followed by serialized body) for
// the given sender and packet into dst. dst must be at least
// HeaderSize+p.Size() bytes.
//
// Parameters:
//   - dst: Destination slice for the full frame
//   - sender: Originating identity; uuid.Nil for server frames
//   - p: The packet to serialize as the frame body
//
// Returns:
//   - The number of bytes written, or an error if dst is too small or
//     serialization fails
func Encode(dst []byte, sender uuid.UUID, p Packet) (int, error) {
	size := p.Size()
	if len(dst) < HeaderSize+size {
		return 0, fmt.Errorf("packet: frame needs %d bytes, have %d", HeaderSize+size, len(dst))
	}

	h := Header{Sender: sender, Type: p.Type(), BodySize: uint32(size)}
	if err := h.Put(dst); err != nil {
		return 0, err
	}

	if err := p.Serialize(dst[HeaderSize : HeaderSize+size]); err != nil {
		return 0, err
	}

	return HeaderSize + size, nil
}

// Frame allocates and builds a complete frame for sender and p.
//
// Parameters:
//   - sender: Originating identity; uuid.Nil for server frames
//   - p: The packet to serialize as the frame body
//
// Returns:
//   - The encoded frame bytes, or a serialization error
func Frame(sender uuid.UUID, p Packet) ([]byte, error) {
	buf := make([]byte, HeaderSize+p.Size())
	n, err := Encode(buf, sender, p)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}
