// Package client provides an event-driven client for the relay protocol.
// It handles the connect handshake, frame decoding, and optional automatic
// reconnection that reclaims the same identity, notifying callers of state
// changes, received packets, and errors via registered handlers.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyberinferno/state-relay/bufpool"
	"github.com/cyberinferno/state-relay/packet"
	"github.com/cyberinferno/state-relay/relay"
)

// ConnectionState represents the current state of the relay connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected and not attempting to connect
	Connecting                          // Connection attempt in progress
	Connected                           // Handshake sent, frames flowing
	Reconnecting                        // Connection lost, reconnect pending (when AutoReconnect is enabled)
	Closed                              // Client has been closed and will not reconnect
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// StateHandler is called when the connection state changes. Handlers are
// invoked from goroutines; implementations must be safe for concurrent use.
type StateHandler func(state ConnectionState, err error)

// FrameHandler is called with each decoded packet received from the relay,
// together with the identity of the originating session (uuid.Nil for
// server-originated frames). Invoked from the read goroutine.
type FrameHandler func(sender uuid.UUID, p packet.Packet)

// ErrorHandler is called when a read, write, or connection error occurs.
type ErrorHandler func(err error)

// Config holds configuration for the relay client.
type Config struct {
	// Address is the "host:port" of the relay server.
	Address string
	// Name is the display name sent in the connect handshake.
	Name string
	// AutoReconnect enables automatic reconnection when the connection is
	// lost. Reconnects reclaim the client's identity so the server rebinds
	// the existing session.
	AutoReconnect bool
	// ReconnectInterval is the delay between reconnection attempts.
	ReconnectInterval time.Duration
	// DialTimeout is the max duration for establishing a connection.
	DialTimeout time.Duration
	// WriteTimeout is the max duration for a single send; 0 means none.
	WriteTimeout time.Duration
	// Codecs decodes received frames. Defaults to packet.Builtin().
	Codecs *packet.Registry
}

// DefaultConfig returns a Config with sane defaults for the given address
// and display name. AutoReconnect is false; override fields as needed.
//
// Parameters:
//   - address: The "host:port" of the relay server
//   - name: Display name for the connect handshake
//
// Returns:
//   - A Config with ReconnectInterval 5s, DialTimeout 10s, WriteTimeout 10s
func DefaultConfig(address, name string) Config {
	return Config{
		Address:           address,
		Name:              name,
		AutoReconnect:     false,
		ReconnectInterval: 5 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client is an event-driven relay client. Register handlers with OnState,
// OnFrame, and OnError, then call Connect. It is safe for concurrent use.
type Client struct {
	config Config
	id     uuid.UUID
	pool   *bufpool.Pool

	mu            sync.RWMutex
	conn          net.Conn
	state         ConnectionState
	everConnected bool
	closed        bool
	reconnecting  bool
	loopStarted   bool

	onState StateHandler
	onFrame FrameHandler
	onError ErrorHandler

	writeMu sync.Mutex

	stopChan      chan struct{}
	reconnectChan chan struct{}
	wg            sync.WaitGroup
}

// NewClient creates a relay client with the given config. A fresh identity
// is allocated; it is proposed to the server on the first connect and
// reclaimed on reconnects.
//
// Parameters:
//   - config: Connection and behavior settings (e.g. from DefaultConfig)
//
// Returns:
//   - A new *Client ready to use; call Close when done
func NewClient(config Config) *Client {
	if config.Codecs == nil {
		config.Codecs = packet.Builtin()
	}

	return &Client{
		config:        config,
		id:            uuid.New(),
		pool:          bufpool.NewPool(packet.HeaderSize + packet.ConnectSize),
		state:         Disconnected,
		stopChan:      make(chan struct{}),
		reconnectChan: make(chan struct{}, 1),
	}
}

// ID returns the client's stable identity.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// OnState registers the handler for connection state changes. Only one
// handler is active; repeated calls replace the previous handler.
func (c *Client) OnState(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// OnFrame registers the handler for decoded incoming packets. Only one
// handler is active; repeated calls replace the previous handler.
func (c *Client) OnFrame(handler FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = handler
}

// OnError registers the handler for read, write, and connection errors.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the relay and performs the connect handshake. The first
// successful connection sends a first-connection handshake; subsequent ones
// reconnect with the preserved identity.
//
// Returns:
//   - nil on success; an error if the client is closed, already
//     connected/connecting, the dial fails, or the handshake send fails
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.mu.Unlock()

	return c.connect()
}

// Disconnect closes the current connection and moves to Disconnected state
// without closing the client; Connect may be called again. Safe to call
// when already disconnected or closed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Disconnected || c.state == Closed {
		return nil
	}

	return c.disconnect()
}

func (c *Client) disconnect() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.setStateLocked(Disconnected, nil)
		return err
	}

	return nil
}

// Close shuts down the client, closes the connection, and stops all
// goroutines. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()

	c.setState(Closed, nil)
	return nil
}

// Send encodes p into a frame attributed to this client's identity and
// writes it to the relay. Concurrent sends are serialized.
//
// Parameters:
//   - p: The packet to send
//
// Returns:
//   - An error if not connected, encoding fails, or the write fails
func (c *Client) Send(p packet.Packet) error {
	frame, err := packet.Frame(c.id, p)
	if err != nil {
		return err
	}

	return c.send(frame)
}

func (c *Client) send(frame []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{}) // Best effort to clear deadline
		}()
	}

	_, err := conn.Write(frame)
	if err != nil {
		c.emitError(err)
		c.triggerReconnect()
	}

	return err
}

// GetState returns the current connection state.
func (c *Client) GetState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true if the client is in Connected state.
func (c *Client) IsConnected() bool {
	return c.GetState() == Connected
}

func (c *Client) connect() error {
	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	kind := packet.KindFirstConnection
	c.mu.Lock()
	if c.everConnected {
		kind = packet.KindReconnecting
	}
	c.conn = conn
	c.mu.Unlock()

	handshake, err := packet.Frame(c.id, &packet.Connect{Kind: kind, Name: c.config.Name})
	if err == nil {
		_, err = conn.Write(handshake)
	}
	if err != nil {
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.everConnected = true
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	if c.config.AutoReconnect {
		c.mu.Lock()
		if !c.loopStarted {
			c.loopStarted = true
			c.wg.Add(1)
			go c.reconnectHandler()
		}
		c.mu.Unlock()
	}

	return nil
}

// readLoop reads and decodes frames until the connection dies. Frames of
// unknown type are skipped rather than treated as errors so codec sets can
// evolve independently on either end.
func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	for {
		buf, h, err := relay.ReadFrame(conn, c.pool)
		if err != nil {
			if !c.isClosed() && !errors.Is(err, net.ErrClosed) {
				if !errors.Is(err, relay.ErrClientGone) {
					c.emitError(err)
				}
				c.triggerReconnect()
			}

			return
		}

		pkt, err := c.config.Codecs.Decode(h.Type, buf.Bytes()[packet.HeaderSize:])
		buf.Release()
		if err != nil {
			continue
		}

		if c.isClosed() {
			return
		}

		c.emitFrame(h.Sender, pkt)
	}
}

func (c *Client) reconnectHandler() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case <-c.reconnectChan:
			c.mu.Lock()
			if c.reconnecting {
				c.mu.Unlock()
				continue
			}
			c.reconnecting = true
			_ = c.disconnect()
			c.mu.Unlock()

			c.setState(Reconnecting, nil)

			select {
			case <-c.stopChan:
				c.mu.Lock()
				c.reconnecting = false
				c.mu.Unlock()
				return
			case <-time.After(c.config.ReconnectInterval):
			}

			if c.isClosed() {
				c.mu.Lock()
				c.reconnecting = false
				c.mu.Unlock()
				return
			}

			err := c.connect()

			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()

			if err != nil {
				select {
				case c.reconnectChan <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (c *Client) triggerReconnect() {
	if !c.config.AutoReconnect || c.isClosed() {
		return
	}

	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.setStateLocked(state, err)
	c.mu.Unlock()
}

// setStateLocked updates the state and emits the change; caller holds c.mu.
func (c *Client) setStateLocked(state ConnectionState, err error) {
	c.state = state
	handler := c.onState

	if handler != nil {
		go handler(state, err)
	}
}

func (c *Client) emitFrame(sender uuid.UUID, p packet.Packet) {
	c.mu.RLock()
	handler := c.onFrame
	c.mu.RUnlock()

	if handler != nil {
		handler(sender, p)
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		go handler(err)
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
