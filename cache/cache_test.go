package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.Equal(t, ErrMiss, err)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.Equal(t, ErrMiss, err)
}

func TestMemoryTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fast", []byte("v"), 10*time.Millisecond))
	_, err := c.Get(ctx, "fast")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "fast")
	assert.Equal(t, ErrMiss, err)

	// Zero TTL never expires.
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryDeleteByPattern(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cities:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "cities:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "odata:/stops", []byte("3"), 0))

	require.NoError(t, c.DeleteByPattern(ctx, "cities:*"))

	_, err := c.Get(ctx, "cities:a")
	assert.Equal(t, ErrMiss, err)
	_, err = c.Get(ctx, "cities:b")
	assert.Equal(t, ErrMiss, err)
	_, err = c.Get(ctx, "odata:/stops")
	assert.NoError(t, err)
}

func TestMemoryMGetMSet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.MSet(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, 0))

	values, err := c.MGet(ctx, "a", "missing", "b")
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, []byte("1"), values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, []byte("2"), values[2])
}
