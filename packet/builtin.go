package packet

import "fmt"

// Built-in packet-type discriminators.
const (
	TypeConnect    uint16 = 1
	TypeDisconnect uint16 = 2
	TypeCostume    uint16 = 3
	TypeChat       uint16 = 4
)

// Connection kinds carried by a Connect packet.
const (
	KindFirstConnection byte = 0
	KindReconnecting    byte = 1
)

// ConnectSize is the fixed body size of a Connect packet: one kind byte
// plus a fixed-length name.
const ConnectSize = 1 + NameLength

// DisconnectSize is the fixed body size of a Disconnect packet.
const DisconnectSize = NameLength

// Connect is the first packet every client must send on a new socket. The
// header's sender id doubles as the proposed (or reclaimed) identity.
type Connect struct {
	Kind byte
	Name string
}

func (p *Connect) Type() uint16 { return TypeConnect }
func (p *Connect) Size() int    { return ConnectSize }

func (p *Connect) Serialize(b []byte) error {
	if len(b) != ConnectSize {
		return fmt.Errorf("packet: connect body needs %d bytes, have %d", ConnectSize, len(b))
	}

	b[0] = p.Kind
	PutFixedString(b[1:], p.Name)
	return nil
}

func (p *Connect) Deserialize(b []byte) error {
	if len(b) != ConnectSize {
		return fmt.Errorf("packet: connect body needs %d bytes, have %d", ConnectSize, len(b))
	}

	if b[0] != KindFirstConnection && b[0] != KindReconnecting {
		return fmt.Errorf("packet: invalid connection kind %d", b[0])
	}

	p.Kind = b[0]
	p.Name = FixedString(b[1:])
	return nil
}

// Disconnect announces that a session has left. It is synthesized by the
// server; the departing identity travels in the frame header.
type Disconnect struct {
	Name string
}

func (p *Disconnect) Type() uint16 { return TypeDisconnect }
func (p *Disconnect) Size() int    { return DisconnectSize }

func (p *Disconnect) Serialize(b []byte) error {
	if len(b) != DisconnectSize {
		return fmt.Errorf("packet: disconnect body needs %d bytes, have %d", DisconnectSize, len(b))
	}

	PutFixedString(b, p.Name)
	return nil
}

func (p *Disconnect) Deserialize(b []byte) error {
	if len(b) != DisconnectSize {
		return fmt.Errorf("packet: disconnect body needs %d bytes, have %d", DisconnectSize, len(b))
	}

	p.Name = FixedString(b)
	return nil
}

// Costume carries a client's opaque visual-state blob. The relay caches
// the most recent costume per session and replays it to late joiners.
type Costume struct {
	Data []byte
}

func (p *Costume) Type() uint16 { return TypeCostume }
func (p *Costume) Size() int    { return len(p.Data) }

func (p *Costume) Serialize(b []byte) error {
	if len(b) != len(p.Data) {
		return fmt.Errorf("packet: costume body needs %d bytes, have %d", len(p.Data), len(b))
	}

	copy(b, p.Data)
	return nil
}

func (p *Costume) Deserialize(b []byte) error {
	p.Data = make([]byte, len(b))
	copy(p.Data, b)
	return nil
}

// Chat is a variable-size application packet: a fixed-length sender name
// followed by UTF-8 message text.
type Chat struct {
	Name string
	Text string
}

func (p *Chat) Type() uint16 { return TypeChat }
func (p *Chat) Size() int    { return NameLength + len(p.Text) }

func (p *Chat) Serialize(b []byte) error {
	if len(b) != p.Size() {
		return fmt.Errorf("packet: chat body needs %d bytes, have %d", p.Size(), len(b))
	}

	PutFixedString(b[:NameLength], p.Name)
	copy(b[NameLength:], p.Text)
	return nil
}

func (p *Chat) Deserialize(b []byte) error {
	if len(b) < NameLength {
		return fmt.Errorf("packet: chat body needs at least %d bytes, have %d", NameLength, len(b))
	}

	p.Name = FixedString(b[:NameLength])
	p.Text = string(b[NameLength:])
	return nil
}
