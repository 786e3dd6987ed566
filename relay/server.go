package relay

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cyberinferno/state-relay/bufpool"
	"github.com/cyberinferno/state-relay/idgen"
	"github.com/cyberinferno/state-relay/logger"
	"github.com/cyberinferno/state-relay/metrics"
	"github.com/cyberinferno/state-relay/packet"
	"github.com/cyberinferno/state-relay/session"
)

// PacketHandler is the injected application hook invoked with every decoded
// packet. Returning false suppresses the frame: it is not broadcast and the
// connection moves on to the next frame. Handlers may send additional
// packets themselves. Implementations must be safe for concurrent use; one
// invocation runs per connection goroutine.
type PacketHandler func(sess *session.Session, p packet.Packet) bool

// JoinHandler is invoked once per genuinely new session, after it has been
// registered and before peers are synced to it. Rebinds during reconnection
// do not trigger it.
type JoinHandler func(sess *session.Session, connect *packet.Connect)

// RateLimitConfig bounds how fast a single connection may deliver inbound
// frames. A connection exceeding the limit is torn down.
type RateLimitConfig struct {
	Enabled         bool
	FramesPerSecond rate.Limit
	Burst           int
}

// Server is the relay's TCP listener and connection supervisor. It accepts
// sockets, enforces the client capacity, and runs one handler goroutine per
// connection. Configure the exported fields before calling Start.
type Server struct {
	Logger     logger.Logger
	Addr       string
	MaxClients int
	Registry   *session.Registry
	Codecs     *packet.Registry
	Handler    PacketHandler
	OnJoin     JoinHandler
	Metrics    *metrics.Metrics
	RateLimit  RateLimitConfig

	listener net.Listener
	running  atomic.Bool
	pool     *bufpool.Pool
	serials  *idgen.Generator
}

// Start binds the listen address and launches the accept loop in a
// goroutine. It is safe to call only when the server is not already
// running.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *Server) Start() error {
	if s.Logger == nil {
		s.Logger = logger.NewNopLogger()
	}

	if s.running.Load() {
		s.Logger.Error("relay server already running")
		return fmt.Errorf("relay server on %s already running", s.Addr)
	}

	if s.Codecs == nil {
		s.Codecs = packet.Builtin()
	}

	if s.pool == nil {
		s.pool = bufpool.NewPool(packet.HeaderSize + packet.ConnectSize)
	}

	if s.serials == nil {
		s.serials = idgen.NewGenerator(0)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("relay server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("relay server failed to start on %s: %w", s.Addr, err)
	}

	s.listener = ln
	s.running.Store(true)

	s.Logger.Info("relay server started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.acceptLoop()

	return nil
}

// ListenAddr returns the bound listen address, useful when Addr requested
// an ephemeral port. Valid only after Start.
func (s *Server) ListenAddr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop stops accepting and closes all live sessions. In-flight handlers
// drain naturally as their sockets close; errors during listener shutdown
// are swallowed since the server is already terminating. Safe to call when
// the server is not running.
func (s *Server) Stop() {
	if s.Logger == nil {
		s.Logger = logger.NewNopLogger()
	}

	if !s.running.Swap(false) {
		s.Logger.Info("relay server not running")
		return
	}

	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, sess := range s.Registry.Connected(uuid.Nil) {
		_ = sess.Close()
	}

	s.Logger.Info("relay server stopped")
}

// acceptLoop accepts connections until the server is stopped. Each accepted
// socket gets Nagle's algorithm disabled (small frequent frames favor
// latency over throughput), is refused immediately when the session count
// is at capacity, and otherwise runs handleConn in its own goroutine.
func (s *Server) acceptLoop() {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Logger.Error("relay server accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		if s.MaxClients > 0 && s.Registry.Len() >= s.MaxClients {
			s.Logger.Warn("connection refused: server at capacity",
				logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
				logger.Field{Key: "max_clients", Value: s.MaxClients})
			s.Metrics.RecordCapacityRejection()
			_ = conn.Close()
			continue
		}

		go s.handleConn(conn, s.serials.Next())
	}
}
