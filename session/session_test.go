package session

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, 0, 0)
}

func TestSession_Costume(t *testing.T) {
	reg := newTestRegistry()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sess, _ := reg.BindFirst(uuid.New(), "alice", server, 1)

	t.Run("nil before first costume", func(t *testing.T) {
		assert.Nil(t, sess.Costume())
	})

	t.Run("set copies the body", func(t *testing.T) {
		body := []byte{1, 2, 3}
		sess.SetCostume(body)
		body[0] = 99

		got := sess.Costume()
		assert.Equal(t, []byte{1, 2, 3}, got)
	})

	t.Run("returned costume is a copy", func(t *testing.T) {
		got := sess.Costume()
		got[0] = 42
		assert.Equal(t, []byte{1, 2, 3}, sess.Costume())
	})
}

func TestSession_Send(t *testing.T) {
	reg := newTestRegistry()
	server, client := net.Pipe()
	defer client.Close()

	sess, _ := reg.BindFirst(uuid.New(), "alice", server, 1)

	t.Run("delivers bytes to the socket", func(t *testing.T) {
		want := []byte("hello")

		done := make(chan []byte, 1)
		go func() {
			got := make([]byte, len(want))
			if _, err := client.Read(got); err != nil {
				done <- nil
				return
			}
			done <- got
		}()

		require.NoError(t, sess.Send(want))
		assert.Equal(t, want, <-done)
	})

	t.Run("fails after close", func(t *testing.T) {
		require.NoError(t, sess.Close())
		assert.ErrorIs(t, sess.Send([]byte("x")), ErrNotConnected)
	})
}

func TestSession_Close(t *testing.T) {
	reg := newTestRegistry()
	server, client := net.Pipe()
	defer client.Close()

	sess, _ := reg.BindFirst(uuid.New(), "alice", server, 1)
	require.True(t, sess.Connected())

	require.NoError(t, sess.Close())
	assert.False(t, sess.Connected())

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, sess.Close())
	})
}

func TestSession_Accessors(t *testing.T) {
	reg := newTestRegistry()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	id := uuid.New()
	sess, _ := reg.BindFirst(id, "alice", server, 7)

	assert.Equal(t, id, sess.ID())
	assert.Equal(t, "alice", sess.Name())
	assert.Equal(t, uint64(7), sess.Serial())
}
