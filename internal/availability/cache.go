package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookinglink/bookinglink/pkg/logging"
)

// SlotCache memoizes computed slot sets in Redis for a short TTL. Keys
// embed a per-provider epoch counter; bumping the epoch on a successful
// booking or schedule change invalidates every cached range for that
// provider without pattern scans. Cache failures degrade to recomputation,
// never to request failures.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewSlotCache builds a slot cache. A zero ttl defaults to 30 seconds.
func NewSlotCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if client == nil {
		panic("availability: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotCache{client: client, ttl: ttl, logger: logger}
}

func epochKey(clinicID, providerID string) string {
	return fmt.Sprintf("avail:epoch:%s:%s", clinicID, providerID)
}

func (c *SlotCache) slotsKey(ctx context.Context, clinicID, providerID, typeID string, from, to time.Time) (string, error) {
	epoch, err := c.client.Get(ctx, epochKey(clinicID, providerID)).Result()
	if err == redis.Nil {
		epoch = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("avail:slots:%s:%s:%s:%s:%s:%s",
		clinicID, providerID, epoch, typeID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)), nil
}

// Get returns the cached slot set, if present.
func (c *SlotCache) Get(ctx context.Context, clinicID, providerID, typeID string, from, to time.Time) ([]Slot, bool) {
	key, err := c.slotsKey(ctx, clinicID, providerID, typeID, from, to)
	if err != nil {
		c.logger.Warn("availability: cache epoch read failed", "error", err)
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("availability: cache read failed", "error", err)
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores a computed slot set.
func (c *SlotCache) Set(ctx context.Context, clinicID, providerID, typeID string, from, to time.Time, slots []Slot) {
	key, err := c.slotsKey(ctx, clinicID, providerID, typeID, from, to)
	if err != nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("availability: cache write failed", "error", err)
	}
}

// Invalidate bumps the provider's epoch, orphaning all cached ranges.
func (c *SlotCache) Invalidate(ctx context.Context, clinicID, providerID string) {
	if err := c.client.Incr(ctx, epochKey(clinicID, providerID)).Err(); err != nil {
		c.logger.Warn("availability: cache invalidate failed",
			"error", err, "clinic_id", clinicID, "provider_id", providerID)
	}
}
