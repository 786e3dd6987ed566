// Package idgen generates monotonically increasing serial numbers. The
// relay stamps every accepted connection with one so log lines from the
// same socket can be correlated even across reconnects of the same player.
package idgen

import "sync/atomic"

// Generator produces monotonically increasing uint64 serials in a
// concurrency-safe manner. The starting value is set at construction and
// the first Next() returns startValue+1.
type Generator struct {
	serial atomic.Uint64
}

// NewGenerator creates a Generator that will produce serials starting from
// startValue+1. The generator is safe for concurrent use.
//
// Parameters:
//   - startValue: The value to initialize the counter to
//
// Returns:
//   - A new Generator instance
func NewGenerator(startValue uint64) *Generator {
	gen := &Generator{}
	gen.serial.Store(startValue)
	return gen
}

// Next returns the next serial by atomically incrementing the internal
// counter. It is safe for concurrent use by multiple goroutines.
func (g *Generator) Next() uint64 {
	return g.serial.Add(1)
}
