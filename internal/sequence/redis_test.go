package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisSequencer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 50})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisSequencer(client)
}

func TestKeyPerBusinessDate(t *testing.T) {
	s := NewRedisSequencer(nil)
	assert.Equal(t, "queue:token:2026-03-02", s.key("2026-03-02"))
	assert.NotEqual(t, s.key("2026-03-02"), s.key("2026-03-03"))
}

func TestNextIsGapFreeUnderConcurrency(t *testing.T) {
	_, seq := newMiniRedis(t)
	ctx := context.Background()
	const n = 1000

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = make([]int, 0, n)
		errs   = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := seq.Next(ctx, "2026-03-02")
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			tokens = append(tokens, tok)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, tokens, n)
	sort.Ints(tokens)
	for i, tok := range tokens {
		require.Equal(t, i+1, tok)
	}
}

func TestNextStartsFreshPerDate(t *testing.T) {
	mr, seq := newMiniRedis(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := seq.Next(ctx, "2026-03-02")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := seq.Next(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	assert.Equal(t, keyTTL, mr.TTL("queue:token:2026-03-02"))
	v, err := mr.Get("queue:token:2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	// the counter is gone once its TTL runs out
	mr.FastForward(keyTTL + time.Second)
	assert.False(t, mr.Exists("queue:token:2026-03-02"))
}

func TestResetClearsOnlyThatDate(t *testing.T) {
	mr, seq := newMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := seq.Next(ctx, "2026-03-02")
		require.NoError(t, err)
	}
	_, err := seq.Next(ctx, "2026-03-03")
	require.NoError(t, err)

	require.NoError(t, seq.Reset(ctx, "2026-03-02"))
	assert.False(t, mr.Exists("queue:token:2026-03-02"))
	assert.True(t, mr.Exists("queue:token:2026-03-03"))

	got, err := seq.Next(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// resetting a date that never issued a token is fine
	assert.NoError(t, seq.Reset(ctx, "2026-04-01"))
}

func TestNextFailsWithoutServer(t *testing.T) {
	mr, seq := newMiniRedis(t)
	mr.Close()

	_, err := seq.Next(context.Background(), "2026-03-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue:token:2026-03-02")
}
