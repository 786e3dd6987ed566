package relay

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/state-relay/bufpool"
	"github.com/cyberinferno/state-relay/packet"
)

// chunkReader yields at most chunk bytes per Read call to simulate a
// stream arriving in arbitrarily small pieces.
type chunkReader struct {
	data  []byte
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}

	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	frame, err := packet.Frame(uuid.New(), &packet.Chat{Name: "alice", Text: "hello"})
	require.NoError(t, err)
	return frame
}

func TestReadFrame_RoundTrip(t *testing.T) {
	pool := bufpool.NewPool(64)
	frame := testFrame(t)

	for _, chunk := range []int{1, 2, 3, 7, len(frame)} {
		r := &chunkReader{data: append([]byte(nil), frame...), chunk: chunk}

		buf, h, err := ReadFrame(r, pool)
		require.NoError(t, err, "chunk size %d", chunk)
		assert.Equal(t, frame, buf.Bytes(), "chunk size %d", chunk)
		assert.Equal(t, packet.TypeChat, h.Type)
		assert.Equal(t, uint32(len(frame)-packet.HeaderSize), h.BodySize)
		buf.Release()
	}
}

func TestReadFrame_BodylessFrame(t *testing.T) {
	pool := bufpool.NewPool(64)

	frame, err := packet.Frame(uuid.New(), &packet.Costume{})
	require.NoError(t, err)
	require.Len(t, frame, packet.HeaderSize)

	buf, h, err := ReadFrame(bytes.NewReader(frame), pool)
	require.NoError(t, err)
	defer buf.Release()

	assert.Equal(t, uint32(0), h.BodySize)
	assert.Equal(t, packet.HeaderSize, buf.Len())
}

func TestReadFrame_CleanDisconnect(t *testing.T) {
	pool := bufpool.NewPool(64)
	frame := testFrame(t)

	t.Run("empty stream", func(t *testing.T) {
		_, _, err := ReadFrame(bytes.NewReader(nil), pool)
		assert.ErrorIs(t, err, ErrClientGone)
	})

	t.Run("stream ends mid-header", func(t *testing.T) {
		for cut := 1; cut < packet.HeaderSize; cut++ {
			_, _, err := ReadFrame(bytes.NewReader(frame[:cut]), pool)
			assert.ErrorIs(t, err, ErrClientGone, "cut at %d", cut)
		}
	})

	t.Run("stream ends mid-body", func(t *testing.T) {
		for _, cut := range []int{packet.HeaderSize, packet.HeaderSize + 1, len(frame) - 1} {
			_, _, err := ReadFrame(bytes.NewReader(frame[:cut]), pool)
			assert.ErrorIs(t, err, ErrClientGone, "cut at %d", cut)
		}
	})
}

func TestReadFrame_BodyTooLarge(t *testing.T) {
	pool := bufpool.NewPool(64)

	head := make([]byte, packet.HeaderSize)
	h := packet.Header{Sender: uuid.New(), Type: packet.TypeCostume, BodySize: packet.MaxBodySize + 1}
	require.NoError(t, h.Put(head))

	_, _, err := ReadFrame(bytes.NewReader(head), pool)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClientGone)
}

func TestReadFrame_BackToBackFrames(t *testing.T) {
	pool := bufpool.NewPool(64)

	first := testFrame(t)
	second, err := packet.Frame(uuid.New(), &packet.Costume{Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	r := &chunkReader{data: append(append([]byte(nil), first...), second...), chunk: 5}

	buf1, h1, err := ReadFrame(r, pool)
	require.NoError(t, err)
	assert.Equal(t, packet.TypeChat, h1.Type)
	assert.Equal(t, first, buf1.Bytes())
	buf1.Release()

	buf2, h2, err := ReadFrame(r, pool)
	require.NoError(t, err)
	assert.Equal(t, packet.TypeCostume, h2.Type)
	assert.Equal(t, second, buf2.Bytes())
	buf2.Release()
}
