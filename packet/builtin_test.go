package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Codec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		p := &Connect{Kind: KindReconnecting, Name: "alice"}
		body := make([]byte, ConnectSize)
		require.NoError(t, p.Serialize(body))

		var got Connect
		require.NoError(t, got.Deserialize(body))
		assert.Equal(t, *p, got)
	})

	t.Run("name longer than field is truncated", func(t *testing.T) {
		long := make([]byte, 0, NameLength*2)
		for i := 0; i < NameLength*2; i++ {
			long = append(long, 'x')
		}

		p := &Connect{Kind: KindFirstConnection, Name: string(long)}
		body := make([]byte, ConnectSize)
		require.NoError(t, p.Serialize(body))

		var got Connect
		require.NoError(t, got.Deserialize(body))
		assert.Len(t, got.Name, NameLength)
	})

	t.Run("invalid kind rejected", func(t *testing.T) {
		body := make([]byte, ConnectSize)
		body[0] = 7

		var got Connect
		assert.Error(t, got.Deserialize(body))
	})

	t.Run("wrong body size rejected", func(t *testing.T) {
		var got Connect
		assert.Error(t, got.Deserialize(make([]byte, ConnectSize+1)))
	})
}

func TestDisconnect_Codec(t *testing.T) {
	p := &Disconnect{Name: "bob"}
	body := make([]byte, DisconnectSize)
	require.NoError(t, p.Serialize(body))

	var got Disconnect
	require.NoError(t, got.Deserialize(body))
	assert.Equal(t, "bob", got.Name)
}

func TestCostume_Codec(t *testing.T) {
	t.Run("round trip copies data", func(t *testing.T) {
		body := []byte{9, 8, 7, 6}

		var got Costume
		require.NoError(t, got.Deserialize(body))
		assert.Equal(t, body, got.Data)

		body[0] = 0
		assert.Equal(t, byte(9), got.Data[0])
	})

	t.Run("empty costume", func(t *testing.T) {
		var got Costume
		require.NoError(t, got.Deserialize(nil))
		assert.Equal(t, 0, got.Size())
	})
}

func TestChat_Codec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		p := &Chat{Name: "carol", Text: "hello there"}
		body := make([]byte, p.Size())
		require.NoError(t, p.Serialize(body))

		var got Chat
		require.NoError(t, got.Deserialize(body))
		assert.Equal(t, *p, got)
	})

	t.Run("body shorter than name field rejected", func(t *testing.T) {
		var got Chat
		assert.Error(t, got.Deserialize(make([]byte, NameLength-1)))
	})

	t.Run("empty text", func(t *testing.T) {
		p := &Chat{Name: "dave"}
		body := make([]byte, p.Size())
		require.NoError(t, p.Serialize(body))

		var got Chat
		require.NoError(t, got.Deserialize(body))
		assert.Empty(t, got.Text)
	})
}

func TestFixedString(t *testing.T) {
	t.Run("short string is zero-padded", func(t *testing.T) {
		dst := make([]byte, 8)
		PutFixedString(dst, "ab")
		assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0}, dst)
		assert.Equal(t, "ab", FixedString(dst))
	})

	t.Run("overwrites previous content", func(t *testing.T) {
		dst := []byte("longname")
		PutFixedString(dst, "hi")
		assert.Equal(t, "hi", FixedString(dst))
	})

	t.Run("long string is truncated", func(t *testing.T) {
		dst := make([]byte, 3)
		PutFixedString(dst, "hello")
		assert.Equal(t, "hel", FixedString(dst))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("builtin types registered", func(t *testing.T) {
		r := Builtin()

		for _, typ := range []uint16{TypeConnect, TypeDisconnect, TypeCostume, TypeChat} {
			p, err := r.New(typ)
			require.NoError(t, err)
			assert.Equal(t, typ, p.Type())
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		r := Builtin()
		_, err := r.New(999)
		assert.Error(t, err)

		_, err = r.Decode(999, nil)
		assert.Error(t, err)

		_, ok := r.DeclaredSize(999)
		assert.False(t, ok)
	})

	t.Run("declared sizes", func(t *testing.T) {
		r := Builtin()

		size, ok := r.DeclaredSize(TypeConnect)
		require.True(t, ok)
		assert.Equal(t, ConnectSize, size)

		size, ok = r.DeclaredSize(TypeCostume)
		require.True(t, ok)
		assert.Equal(t, SizeVariable, size)
	})

	t.Run("decode enforces fixed size", func(t *testing.T) {
		r := Builtin()
		_, err := r.Decode(TypeConnect, make([]byte, ConnectSize-1))
		assert.Error(t, err)
	})

	t.Run("decode variable size", func(t *testing.T) {
		r := Builtin()
		p, err := r.Decode(TypeCostume, []byte{1, 2})
		require.NoError(t, err)

		costume, ok := p.(*Costume)
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2}, costume.Data)
	})
}
