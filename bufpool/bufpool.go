// Package bufpool provides pooled byte buffers with explicit ownership.
// A buffer rented from a Pool has exactly one owner at a time; the owner
// either calls Release or hands the buffer (and with it the release
// responsibility) to another component, such as the broadcast engine.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Pool rents fixed-length byte buffers backed by sync.Pool. Buffers are
// recycled on Release; callers must not touch a buffer after releasing it.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a Pool whose buffers start at the given minimum capacity.
// Get grows individual buffers beyond it as needed.
//
// Parameters:
//   - minCapacity: Initial capacity of freshly allocated buffers
//
// Returns:
//   - A new Pool ready for concurrent use
func NewPool(minCapacity int) *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		return &Buffer{pool: p, data: make([]byte, 0, minCapacity)}
	}

	return p
}

// Get rents a buffer with Len() == size. The caller owns the buffer until
// it calls Release or transfers ownership.
//
// Parameters:
//   - size: Required buffer length in bytes
//
// Returns:
//   - An owned *Buffer of exactly size bytes
func (p *Pool) Get(size int) *Buffer {
	b := p.pool.Get().(*Buffer)
	b.released.Store(false)

	if cap(b.data) < size {
		b.data = make([]byte, size)
	} else {
		b.data = b.data[:size]
	}

	return b
}

// Buffer is a pooled byte region with single-owner semantics. Release
// returns it to the pool; releasing twice is a no-op so error paths can
// defer Release even when ownership may have been transferred.
type Buffer struct {
	pool     *Pool
	data     []byte
	released atomic.Bool
}

// Bytes returns the buffer's contents. The slice is only valid until Release.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Release returns the buffer to its pool. Safe to call more than once;
// only the first call recycles the buffer.
func (b *Buffer) Release() {
	if b.released.Swap(true) {
		return
	}

	b.data = b.data[:0]
	b.pool.pool.Put(b)
}
