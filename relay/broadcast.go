package relay

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/state-relay/bufpool"
	"github.com/cyberinferno/state-relay/logger"
	"github.com/cyberinferno/state-relay/session"
)

// Broadcast fans the frame in buf out to every connected session except the
// excluded sender, then releases the buffer. Ownership of buf transfers to
// this call. Deliveries run concurrently; a failed or slow recipient never
// blocks the others beyond its own send, and per-recipient byte ordering is
// preserved by each session's serialized writer.
//
// Parameters:
//   - buf: The complete frame; released after all deliveries finish
//   - exclude: Sender identity to skip; uuid.Nil skips nobody
func (s *Server) Broadcast(buf *bufpool.Buffer, exclude uuid.UUID) {
	defer buf.Release()
	s.broadcast(buf.Bytes(), exclude)
}

// BroadcastRaw fans caller-owned bytes out to every connected session
// except the excluded sender. Used for server-originated frames such as
// disconnect announcements; the engine does not dispose the data.
//
// Parameters:
//   - data: The complete frame bytes; remain owned by the caller
//   - exclude: Sender identity to skip; uuid.Nil skips nobody
func (s *Server) BroadcastRaw(data []byte, exclude uuid.UUID) {
	s.broadcast(data, exclude)
}

func (s *Server) broadcast(data []byte, exclude uuid.UUID) {
	targets := s.Registry.Connected(exclude)
	if len(targets) == 0 {
		return
	}

	g := new(errgroup.Group)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			if err := target.Send(data); err != nil && !errors.Is(err, session.ErrNotConnected) {
				s.Logger.Warn("broadcast delivery failed",
					logger.Field{Key: "session_id", Value: target.ID().String()},
					logger.Field{Key: "error", Value: err})
			}

			return nil
		})
	}

	_ = g.Wait()
	s.Metrics.RecordRelay(len(data), len(targets))
}

// ReplaceFunc synthesizes and sends a per-recipient frame. It runs once per
// recipient, concurrently across recipients, and performs its own send.
type ReplaceFunc func(sender, recipient *session.Session) error

// BroadcastReplace fans a logical packet out through a per-(sender,
// recipient) transform instead of verbatim bytes. Used for packet types
// whose meaning depends on who receives them. The sender itself and
// disconnected sessions are skipped.
//
// Parameters:
//   - sender: The originating session, excluded from delivery
//   - fn: Transform invoked per recipient; errors are logged, not propagated
func (s *Server) BroadcastReplace(sender *session.Session, fn ReplaceFunc) {
	targets := s.Registry.Connected(sender.ID())
	if len(targets) == 0 {
		return
	}

	g := new(errgroup.Group)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			if err := fn(sender, target); err != nil {
				s.Logger.Warn("replace broadcast delivery failed",
					logger.Field{Key: "session_id", Value: target.ID().String()},
					logger.Field{Key: "error", Value: err})
			}

			return nil
		})
	}

	_ = g.Wait()
}
