package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cyberinferno/state-relay/logger"
	"github.com/cyberinferno/state-relay/packet"
	"github.com/cyberinferno/state-relay/session"
)

// handleConn drives one socket from accept to teardown: read frames, bind
// the session on the first frame, cache costumes, dispatch to the injected
// handler, and fan out. Nothing that happens here escalates past this
// connection.
func (s *Server) handleConn(conn net.Conn, serial uint64) {
	log := s.Logger.With(
		logger.Field{Key: "conn", Value: serial},
		logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
	)

	var sess *session.Session
	defer func() {
		s.finishConn(conn, sess, log)
	}()

	var limiter *rate.Limiter
	if s.RateLimit.Enabled {
		limiter = rate.NewLimiter(s.RateLimit.FramesPerSecond, s.RateLimit.Burst)
	}

	for {
		buf, h, err := ReadFrame(conn, s.pool)
		if err != nil {
			s.logReadEnd(err, log)
			return
		}

		if limiter != nil && !limiter.Allow() {
			buf.Release()
			log.Warn("inbound frame rate exceeded, closing connection")
			s.Metrics.RecordError("rate_limit")
			return
		}

		body := buf.Bytes()[packet.HeaderSize:]

		if sess == nil {
			bound, err := s.bindFirstFrame(conn, h, body, serial, log)
			if err != nil {
				buf.Release()
				return
			}

			sess = bound
			log = log.With(
				logger.Field{Key: "session_id", Value: sess.ID().String()},
				logger.Field{Key: "name", Value: sess.Name()},
			)
		} else if h.Sender != sess.ID() {
			log.Error("frame sender does not match bound identity",
				logger.Field{Key: "frame_sender", Value: h.Sender.String()})
			s.Metrics.RecordError("identity_mismatch")
			buf.Release()
			return
		}

		// Cache the costume before the handler runs so a suppressed frame
		// still updates the replay state for late joiners.
		if h.Type == packet.TypeCostume {
			sess.SetCostume(body)
		}

		pkt, err := s.Codecs.Decode(h.Type, body)
		if err != nil {
			log.Warn("dropping undecodable frame",
				logger.Field{Key: "packet_type", Value: h.Type},
				logger.Field{Key: "error", Value: err})
			s.Metrics.RecordSuppressed()
			buf.Release()
			continue
		}

		if !s.invokeHandler(sess, pkt, log) {
			s.Metrics.RecordSuppressed()
			buf.Release()
			continue
		}

		s.Broadcast(buf, sess.ID())
	}
}

// bindFirstFrame runs the session state machine on a socket's first frame,
// which must be of connect type. It resolves the identity, registers or
// rebinds the session, evicts stale sockets holding the same identity,
// fires the join notification for fresh registrations, and replays the
// current peer roster to the new socket.
func (s *Server) bindFirstFrame(conn net.Conn, h packet.Header, body []byte, serial uint64, log logger.Logger) (*session.Session, error) {
	if h.Type != packet.TypeConnect {
		log.Error("first frame must be a connect packet",
			logger.Field{Key: "packet_type", Value: h.Type})
		s.Metrics.RecordError("bad_first_frame")
		return nil, fmt.Errorf("relay: first frame has type %d, want connect", h.Type)
	}

	var connect packet.Connect
	if err := connect.Deserialize(body); err != nil {
		log.Error("malformed connect packet", logger.Field{Key: "error", Value: err})
		s.Metrics.RecordError("bad_connect")
		return nil, err
	}

	// The header's sender id doubles as the proposed identity; the zero
	// UUID is reserved for the server, so allocate in that case.
	id := h.Sender
	if id == uuid.Nil {
		id = uuid.New()
	}

	var (
		sess  *session.Session
		fresh bool
	)

	if connect.Kind == packet.KindReconnecting {
		bound, wasFresh, err := s.Registry.BindReconnect(context.Background(), id, connect.Name, conn, serial)
		if err != nil {
			log.Error("reconnection refused",
				logger.Field{Key: "session_id", Value: id.String()},
				logger.Field{Key: "error", Value: err})
			s.Metrics.RecordError("duplicate_reconnection")
			return nil, err
		}

		sess, fresh = bound, wasFresh
		if !fresh {
			log.Info("session rebound", logger.Field{Key: "session_id", Value: id.String()})
		}
	} else {
		var evicted []*session.Session
		sess, evicted = s.Registry.BindFirst(id, connect.Name, conn, serial)
		fresh = true

		for _, old := range evicted {
			log.Warn("evicting stale session with same identity",
				logger.Field{Key: "session_id", Value: id.String()},
				logger.Field{Key: "stale_conn", Value: old.Serial()})
			_ = old.Close()
		}
	}

	if fresh {
		log.Info("session joined",
			logger.Field{Key: "session_id", Value: sess.ID().String()},
			logger.Field{Key: "name", Value: sess.Name()})

		if s.OnJoin != nil {
			s.OnJoin(sess, &connect)
		}
	}

	s.Metrics.RecordConnection()
	s.syncPeers(sess, log)

	return sess, nil
}

// syncPeers replays the current roster to a freshly bound socket: one
// connect-equivalent frame per other connected session, followed by that
// peer's cached costume frame if one exists. A single scratch buffer sized
// to the largest payload is reused across peers.
func (s *Server) syncPeers(sess *session.Session, log logger.Logger) {
	peers := s.Registry.Connected(sess.ID())
	if len(peers) == 0 {
		return
	}

	costumes := make([][]byte, len(peers))
	maxLen := packet.HeaderSize + packet.ConnectSize
	for i, peer := range peers {
		costumes[i] = peer.Costume()
		if n := packet.HeaderSize + len(costumes[i]); n > maxLen {
			maxLen = n
		}
	}

	scratch := s.pool.Get(maxLen)
	defer scratch.Release()

	for i, peer := range peers {
		n, err := packet.Encode(scratch.Bytes(), peer.ID(), &packet.Connect{
			Kind: packet.KindFirstConnection,
			Name: peer.Name(),
		})
		if err != nil {
			continue
		}

		if err := sess.Send(scratch.Bytes()[:n]); err != nil {
			log.Warn("peer sync aborted", logger.Field{Key: "error", Value: err})
			return
		}

		if costumes[i] == nil {
			continue
		}

		n, err = packet.Encode(scratch.Bytes(), peer.ID(), &packet.Costume{Data: costumes[i]})
		if err != nil {
			continue
		}

		if err := sess.Send(scratch.Bytes()[:n]); err != nil {
			log.Warn("peer sync aborted", logger.Field{Key: "error", Value: err})
			return
		}
	}
}

// invokeHandler runs the injected packet handler. A panicking handler is
// logged and treated the same as an explicit suppression; the connection
// stays alive.
func (s *Server) invokeHandler(sess *session.Session, pkt packet.Packet, log logger.Logger) (relayFrame bool) {
	if s.Handler == nil {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("packet handler panicked", logger.Field{Key: "panic", Value: r})
			s.Metrics.RecordError("handler_panic")
			relayFrame = false
		}
	}()

	return s.Handler(sess, pkt)
}

// finishConn is every connection's terminal path: remove the session from
// the registry, dispose the socket, and announce the departure to peers.
// A session that was already evicted and replaced by a newer socket is not
// announced; its identity is still present.
func (s *Server) finishConn(conn net.Conn, sess *session.Session, log logger.Logger) {
	_ = conn.Close()

	if sess == nil {
		return
	}

	removed := s.Registry.Remove(context.Background(), sess)
	_ = sess.Close()

	if !removed {
		return
	}

	s.Metrics.RecordDisconnection()

	frame, err := packet.Frame(sess.ID(), &packet.Disconnect{Name: sess.Name()})
	if err == nil {
		s.BroadcastRaw(frame, sess.ID())
	}

	log.Info("session removed",
		logger.Field{Key: "session_id", Value: sess.ID().String()},
		logger.Field{Key: "name", Value: sess.Name()})
}

// logReadEnd classifies why the read loop ended. Clean disconnects and
// connection resets are informational; anything else is an error.
func (s *Server) logReadEnd(err error, log logger.Logger) {
	switch {
	case errors.Is(err, ErrClientGone):
		log.Info("client disconnected")
	case errors.Is(err, net.ErrClosed):
		log.Info("connection closed")
	case isConnReset(err):
		log.Info("connection reset by peer")
	default:
		log.Error("fatal read error", logger.Field{Key: "error", Value: err})
		s.Metrics.RecordError("read")
	}
}

// isConnReset reports whether the error is a connection-reset style
// transport failure.
func isConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
