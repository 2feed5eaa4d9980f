package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	value, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	// "b" is the least recently used entry
	require.NoError(t, c.Set(ctx, "c", []byte("3")))
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Purge(ctx))
	for _, key := range []string{"a", "c"} {
		_, err = c.Get(ctx, key)
		assert.ErrorIs(t, err, core.ErrCacheMiss, key)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 20*time.Millisecond)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "a")
		return err == core.ErrCacheMiss
	}, time.Second, 10*time.Millisecond)
}
