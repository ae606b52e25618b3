package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestTTLCache_GetSet(t *testing.T) {
	c := NewTTLCache(10, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	got[0] = 'X'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v1"), again, "returned bytes are a copy")

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache(10, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	clock.Advance(30 * time.Minute)
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	clock.Advance(30 * time.Minute)
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "expires exactly at the TTL")
	_, ok, _ = c.Get(ctx, "b")
	assert.True(t, ok)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Purge())
	assert.Zero(t, c.Len())
}

func TestTTLCache_EvictsLeastRecentlyInserted(t *testing.T) {
	c := NewTTLCache(3, time.Hour)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), 0))
	}
	// reading does not refresh insertion order
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)
	// overwriting does
	require.NoError(t, c.Set(ctx, "b", []byte("b2"), 0))

	require.NoError(t, c.Set(ctx, "d", []byte("d"), 0))
	assert.Equal(t, 3, c.Len())

	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok, "a was inserted first")
	for _, k := range []string{"b", "c", "d"} {
		_, ok, _ = c.Get(ctx, k)
		assert.True(t, ok, k)
	}
}

func TestTTLCache_ConcurrentAccessKeepsBookkeeping(t *testing.T) {
	c := NewTTLCache(16, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%40)
				_ = c.Set(ctx, key, []byte(key), 0)
				_, _, _ = c.Get(ctx, key)
				if i%9 == 0 {
					_ = c.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.LessOrEqual(t, c.order.Len(), 16)
	assert.Equal(t, c.order.Len(), len(c.entries))
}

func TestTTLCache_JanitorAndClose(t *testing.T) {
	c := NewTTLCache(4, 10*time.Millisecond)
	c.StartJanitor(5 * time.Millisecond)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
}

func TestNewTTLCache_Defaults(t *testing.T) {
	c := NewTTLCache(0, 0)
	assert.Equal(t, DefaultCapacity, c.capacity)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestTTLCache_PerEntryTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache(10, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	tests := []struct {
		name  string
		ttl   time.Duration
		after time.Duration
		want  bool
	}{
		{name: "short ttl expires early", ttl: time.Minute, after: 2 * time.Minute, want: false},
		{name: "long ttl outlives default", ttl: 3 * time.Hour, after: 2 * time.Hour, want: true},
		{name: "zero ttl uses default", ttl: 0, after: 59 * time.Minute, want: true},
		{name: "negative ttl uses default", ttl: -time.Second, after: 61 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := clock.Now()
			require.NoError(t, c.Set(ctx, tt.name, []byte("v"), tt.ttl))
			clock.Advance(tt.after)
			_, ok, err := c.Get(ctx, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			clock.t = start
		})
	}
}
