// Package relay implements the connection-handling and fan-out core of the
// state relay: the TCP listener, per-connection frame loop with the session
// state machine, and the broadcast engine. Packet interpretation beyond the
// built-in connect handshake is delegated to an injected handler.
package relay

import (
	"errors"
	"fmt"
	"io"

	"github.com/cyberinferno/state-relay/bufpool"
	"github.com/cyberinferno/state-relay/packet"
)

// ErrClientGone signals that the peer closed its end of the connection
// cleanly. It is the normal end of a connection, not a failure.
var ErrClientGone = errors.New("relay: client closed the connection")

// ReadFrame reads one complete header+body frame off r. Partial reads are
// accumulated until the frame is complete. A zero-length read at any point,
// during the header or the body, yields ErrClientGone.
//
// Parameters:
//   - r: The stream to read from, typically a net.Conn
//   - pool: Pool the frame buffer is rented from
//
// Returns:
//   - An owned buffer holding header and body contiguously; the caller must
//     release it or hand it off
//   - The parsed frame header
//   - ErrClientGone on clean disconnect, or the socket/framing error
func ReadFrame(r io.Reader, pool *bufpool.Pool) (*bufpool.Buffer, packet.Header, error) {
	var head [packet.HeaderSize]byte
	if err := readFull(r, head[:]); err != nil {
		return nil, packet.Header{}, err
	}

	h, err := packet.ParseHeader(head[:])
	if err != nil {
		return nil, packet.Header{}, err
	}

	if h.BodySize > packet.MaxBodySize {
		return nil, packet.Header{}, fmt.Errorf("relay: frame declares %d body bytes, max is %d", h.BodySize, packet.MaxBodySize)
	}

	buf := pool.Get(packet.HeaderSize + int(h.BodySize))
	copy(buf.Bytes(), head[:])

	if h.BodySize > 0 {
		if err := readFull(r, buf.Bytes()[packet.HeaderSize:]); err != nil {
			buf.Release()
			return nil, packet.Header{}, err
		}
	}

	return buf, h, nil
}

// readFull accumulates exactly len(b) bytes from r. A peer shutdown before
// or during the read maps to ErrClientGone.
func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrClientGone
	}

	return err
}
