package availability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SlotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotCache(client, time.Minute, nil)
}

func TestSlotCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	from := utc(9, 0)
	to := utc(17, 0)
	slots := []Slot{{Start: utc(9, 0), End: utc(9, 30)}, {Start: utc(9, 30), End: utc(10, 0)}}

	_, ok := cache.Get(ctx, "clinic-1", "prov-1", "type-1", from, to)
	assert.False(t, ok)

	cache.Set(ctx, "clinic-1", "prov-1", "type-1", from, to, slots)
	got, ok := cache.Get(ctx, "clinic-1", "prov-1", "type-1", from, to)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(slots[0].Start))

	// Different type misses.
	_, ok = cache.Get(ctx, "clinic-1", "prov-1", "type-2", from, to)
	assert.False(t, ok)
}

func TestSlotCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	from := utc(9, 0)
	to := utc(17, 0)
	cache.Set(ctx, "clinic-1", "prov-1", "type-1", from, to, []Slot{{Start: utc(9, 0), End: utc(9, 30)}})
	cache.Set(ctx, "clinic-1", "prov-2", "type-1", from, to, []Slot{{Start: utc(10, 0), End: utc(10, 30)}})

	cache.Invalidate(ctx, "clinic-1", "prov-1")

	_, ok := cache.Get(ctx, "clinic-1", "prov-1", "type-1", from, to)
	assert.False(t, ok, "invalidated provider should miss")

	_, ok = cache.Get(ctx, "clinic-1", "prov-2", "type-1", from, to)
	assert.True(t, ok, "other providers keep their cache")
}
