package packet

import (
	"fmt"
	"sync"
)

// SizeVariable marks a packet type whose body length is decided at encode
// time rather than being fixed by its codec.
const SizeVariable = -1

// Packet is the codec contract every packet type implements. Size reports
// the encoded body length; for variable-size packets it reflects the
// current value being encoded. Serialize writes exactly Size bytes into
// the given buffer; Deserialize consumes the whole buffer.
type Packet interface {
	Type() uint16
	Size() int
	Serialize(b []byte) error
	Deserialize(b []byte) error
}

// Registry maps packet-type discriminators to constructors and declared
// sizes. It is populated once at startup and read concurrently afterwards;
// no reflection is involved. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint16]entry
}

type entry struct {
	newFn func() Packet
	size  int
}

// NewRegistry returns an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint16]entry)}
}

// Register associates a packet type with a zero-argument constructor and a
// declared body size (SizeVariable for variable-size types). Registering
// the same type twice overwrites the previous entry.
//
// Parameters:
//   - typ: The packet-type discriminator
//   - size: Declared fixed body size, or SizeVariable
//   - newFn: Constructor returning a fresh, empty packet instance
func (r *Registry) Register(typ uint16, size int, newFn func() Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typ] = entry{newFn: newFn, size: size}
}

// New constructs a fresh packet instance for the given type.
//
// Parameters:
//   - typ: The packet-type discriminator
//
// Returns:
//   - A new empty packet, or an error if the type is not registered
func (r *Registry) New(typ uint16) (Packet, error) {
	r.mu.RLock()
	e, ok := r.entries[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("packet: unknown packet type %d", typ)
	}

	return e.newFn(), nil
}

// DeclaredSize returns the registered body size for the given type and
// whether the type is known. Variable-size types return SizeVariable.
func (r *Registry) DeclaredSize(typ uint16) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[typ]
	if !ok {
		return 0, false
	}

	return e.size, true
}

// Decode constructs and deserializes a packet of the given type from body.
// For fixed-size types the body length must match the declared size.
//
// Parameters:
//   - typ: The packet-type discriminator
//   - body: The frame body bytes
//
// Returns:
//   - The decoded packet, or an error for unknown types, size mismatches,
//     or deserialization failures
func (r *Registry) Decode(typ uint16, body []byte) (Packet, error) {
	r.mu.RLock()
	e, ok := r.entries[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("packet: unknown packet type %d", typ)
	}

	if e.size != SizeVariable && e.size != len(body) {
		return nil, fmt.Errorf("packet: type %d declares %d body bytes, frame carries %d", typ, e.size, len(body))
	}

	p := e.newFn()
	if err := p.Deserialize(body); err != nil {
		return nil, fmt.Errorf("packet: decode type %d: %w", typ, err)
	}

	return p, nil
}

// Builtin returns a registry pre-populated with the relay's built-in
// packet types (Connect, Disconnect, Costume, Chat).
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(TypeConnect, ConnectSize, func() Packet { return &Connect{} })
	r.Register(TypeDisconnect, DisconnectSize, func() Packet { return &Disconnect{} })
	r.Register(TypeCostume, SizeVariable, func() Packet { return &Costume{} })
	r.Register(TypeChat, SizeVariable, func() Packet { return &Chat{} })
	return r
}
