package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/lock"
)

func newRedisLock(t *testing.T, holder string, ttl time.Duration) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewRedis(rdb, holder, ttl), mr
}

func TestRedis_AcquireIsExclusive(t *testing.T) {
	l, mr := newRedisLock(t, "relay-a", time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "7"))
	assert.ErrorIs(t, l.Acquire(ctx, "7"), lock.ErrHeld)
	assert.NoError(t, l.Acquire(ctx, "8"), "locks are per id")

	holder, err := l.Holder(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "relay-a", holder)
	assert.True(t, mr.Exists("bet-lock:7"))
}

func TestRedis_ReleaseIsIdempotent(t *testing.T) {
	l, _ := newRedisLock(t, "relay-a", time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "7"))
	require.NoError(t, l.Release(ctx, "7"))
	require.NoError(t, l.Release(ctx, "7"))
	assert.NoError(t, l.Acquire(ctx, "7"))
}

func TestRedis_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	a := lock.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "relay-a", time.Minute)
	b := lock.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "relay-b", time.Minute)
	ctx := context.Background()

	require.NoError(t, a.Acquire(ctx, "1"))
	assert.ErrorIs(t, b.Acquire(ctx, "1"), lock.ErrHeld)
}

func TestRedis_TTLExpires(t *testing.T) {
	l, mr := newRedisLock(t, "relay-a", 15*time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "3"))
	mr.FastForward(16 * time.Minute)
	assert.NoError(t, l.Acquire(ctx, "3"))
}

func TestMemory_ConcurrentAcquire(t *testing.T) {
	m := lock.NewMemory()
	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire(context.Background(), "42") == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.True(t, m.Held("42"))
	require.NoError(t, m.Release(context.Background(), "42"))
	assert.False(t, m.Held("42"))
}
