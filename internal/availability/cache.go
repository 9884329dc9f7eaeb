package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// SlotCache is a short-TTL read-through cache of computed slot lists.
// It is never the source of truth: callers invalidate the therapist-day
// entry whenever a booking for that slot changes, and entries expire on
// their own regardless.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewSlotCache creates a cache with the given TTL.
func NewSlotCache(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if redisClient == nil {
		panic("availability: redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotCache{redis: redisClient, ttl: ttl, logger: logger}
}

func (c *SlotCache) key(therapistID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("slots:%s:%s", therapistID, day.Format("2006-01-02"))
}

// Get returns the cached slots and whether the entry was present.
func (c *SlotCache) Get(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]TimeSlot, bool, error) {
	data, err := c.redis.Get(ctx, c.key(therapistID, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability: cache get: %w", err)
	}
	var slots []TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("availability: cache decode: %w", err)
	}
	return slots, true, nil
}

// Set stores the slot list for one therapist-day.
func (c *SlotCache) Set(ctx context.Context, therapistID uuid.UUID, day time.Time, slots []TimeSlot) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(therapistID, day), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the entry for one therapist-day. Safe to call when no
// entry exists.
func (c *SlotCache) Invalidate(ctx context.Context, therapistID uuid.UUID, day time.Time) {
	if err := c.redis.Del(ctx, c.key(therapistID, day)).Err(); err != nil {
		c.logger.Error("slot cache invalidate failed",
			"therapist_id", therapistID,
			"day", day.Format("2006-01-02"),
			"error", err,
		)
	}
}
