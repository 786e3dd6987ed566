package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_Next(t *testing.T) {
	gen := NewGenerator(0)

	assert.Equal(t, uint64(1), gen.Next())
	assert.Equal(t, uint64(2), gen.Next())
	assert.Equal(t, uint64(3), gen.Next())
}

func TestGenerator_StartValue(t *testing.T) {
	gen := NewGenerator(100)
	assert.Equal(t, uint64(101), gen.Next())
}

func TestGenerator_Concurrent(t *testing.T) {
	gen := NewGenerator(0)

	const (
		goroutines = 8
		perG       = 1000
	)

	seen := make([]map[uint64]struct{}, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		seen[i] = make(map[uint64]struct{}, perG)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				seen[i][gen.Next()] = struct{}{}
			}
		}(i)
	}
	wg.Wait()

	all := make(map[uint64]struct{}, goroutines*perG)
	for _, m := range seen {
		for id := range m {
			all[id] = struct{}{}
		}
	}

	assert.Len(t, all, goroutines*perG)
}
