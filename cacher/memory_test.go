package cacher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacher_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacher[string](time.Minute, time.Minute)

	t.Run("get returns stored value", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", time.Minute, "v"))

		got, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "v", got)
	})

	t.Run("missing key", func(t *testing.T) {
		got, found, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", time.Minute, "v2"))

		got, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "v2", got)
	})
}

func TestMemoryCacher_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacher[int](time.Minute, 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", 20*time.Millisecond, 1))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)

	assert.Eventually(t, func() bool {
		_, found, err := c.Get(ctx, "k")
		return err == nil && !found
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCacher_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacher[int](time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "k", time.Minute, 1))
	require.NoError(t, c.Delete(ctx, "k"))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("deleting missing key is a no-op", func(t *testing.T) {
		assert.NoError(t, c.Delete(ctx, "missing"))
	})
}

func TestMemoryCacher_ClearAndCount(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacher[int](time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "a", time.Minute, 1))
	require.NoError(t, c.Set(ctx, "b", time.Minute, 2))

	count, err := c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, c.Clear(ctx))

	count, err = c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryCacher_StructValues(t *testing.T) {
	type payload struct {
		Name string
		Blob []byte
	}

	ctx := context.Background()
	c := NewMemoryCacher[payload](time.Minute, time.Minute)

	want := payload{Name: "alice", Blob: []byte{1, 2, 3}}
	require.NoError(t, c.Set(ctx, "k", time.Minute, want))

	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}
