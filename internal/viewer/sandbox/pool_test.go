package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, PoolStats{Size: 2, Available: 2}, pool.Stats())

	rt, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Stats().InUse)

	_, err = rt.Load(context.Background(), Page{HTML: `<script>var leaked = 1;</script>`})
	require.NoError(t, err)

	require.NoError(t, pool.Release(rt))
	assert.Equal(t, 2, pool.Stats().Available)

	// released runtimes come back clean
	for i := 0; i < 2; i++ {
		rt, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.Nil(t, rt.Global("leaked"))
		defer pool.Release(rt)
	}
}

func TestPoolExhausted(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 20 * time.Millisecond

	pool, err := NewPool(config, 1)
	require.NoError(t, err)
	defer pool.Close()

	rt, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(rt)

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolClosed(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)

	rt, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, pool.Release(rt))
	assert.True(t, pool.Stats().Closed)
}
