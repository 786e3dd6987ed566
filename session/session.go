// Package session holds the server-side record of each logical player and
// the registry that maps identities to sessions. A session outlives the
// physical socket that carries its traffic: reconnection rebinds a new
// socket to the same session, and a retention cache preserves session
// state across the reconnect window after the socket is gone.
package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotConnected is returned by Send when the session has no live socket.
var ErrNotConnected = errors.New("session: not connected")

// Session represents one logical connected player. Exactly one Session
// exists per identity at any time; ownership belongs to whichever
// connection handler currently holds the live socket. All socket writes go
// through Send, which serializes them so concurrent broadcasts never
// interleave bytes on the same outbound stream.
type Session struct {
	id uuid.UUID

	mu        sync.RWMutex
	name      string
	conn      net.Conn
	connected bool
	costume   []byte
	serial    uint64

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// ID returns the session's stable 128-bit identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Name returns the session's current display name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Serial returns the connection serial of the socket currently bound to
// this session, used for log correlation.
func (s *Session) Serial() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serial
}

// Connected reports whether a handler currently owns a live socket for
// this session.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetCostume caches a copy of the most recent costume body. The copy
// decouples the cache from the pooled frame buffer the body arrived in.
//
// Parameters:
//   - body: The costume packet body; not retained
func (s *Session) SetCostume(body []byte) {
	c := make([]byte, len(body))
	copy(c, body)

	s.mu.Lock()
	s.costume = c
	s.mu.Unlock()
}

// Costume returns a copy of the cached costume body, or nil if none has
// been seen yet.
func (s *Session) Costume() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.costume == nil {
		return nil
	}

	c := make([]byte, len(s.costume))
	copy(c, s.costume)
	return c
}

// Send writes data to the session's socket. Writes from concurrent callers
// are serialized, so the bytes of one frame are never interleaved with
// another's on the wire.
//
// Parameters:
//   - data: The complete frame bytes to send
//
// Returns:
//   - ErrNotConnected if no live socket is bound, or the socket write error
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	connected := s.connected
	timeout := s.writeTimeout
	s.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{}) // Best effort to clear deadline
		}()
	}

	_, err := conn.Write(data)
	return err
}

// Close marks the session disconnected and closes its socket if one is
// bound. Safe to call more than once.
//
// Returns:
//   - The error from closing the socket, if any
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// rebind attaches a new socket to the session, overriding the display name
// and marking it connected. The cached costume is preserved.
func (s *Session) rebind(conn net.Conn, name string, serial uint64) {
	s.mu.Lock()
	s.conn = conn
	s.name = name
	s.serial = serial
	s.connected = true
	s.mu.Unlock()
}
