package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smarttransit/busline-backend/internal/models"
)

// SeatCache stores rendered seat maps per trip
type SeatCache interface {
	// Get returns the cached seat map, or nil on a miss
	Get(ctx context.Context, tripID string) (*models.SeatMap, error)
	Set(ctx context.Context, seatMap *models.SeatMap) error
	Invalidate(ctx context.Context, tripID string) error
}

// SeatKey returns the cache key holding a trip's seat map
func SeatKey(tripID string) string {
	return fmt.Sprintf("seats:%s", tripID)
}

// RedisSeatCache is a SeatCache backed by Redis
type RedisSeatCache struct {
	client      *redis.Client
	ttl         time.Duration
	repeatAfter time.Duration
	afterFunc   func(time.Duration, func())
}

// NewRedisSeatCache creates a RedisSeatCache whose entries expire after ttl
func NewRedisSeatCache(client *redis.Client, ttl time.Duration) *RedisSeatCache {
	return &RedisSeatCache{
		client: client,
		ttl:    ttl,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// WithRepeatedInvalidate makes Invalidate delete the key a second time after
// delay. A reader that loaded seats before the write committed may have
// stored its map after the first delete; the second one drops it.
func (c *RedisSeatCache) WithRepeatedInvalidate(delay time.Duration) *RedisSeatCache {
	c.repeatAfter = delay
	return c
}

func (c *RedisSeatCache) Get(ctx context.Context, tripID string) (*models.SeatMap, error) {
	raw, err := c.client.Get(ctx, SeatKey(tripID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seat cache: %w", err)
	}

	var seatMap models.SeatMap
	if err := json.Unmarshal(raw, &seatMap); err != nil {
		return nil, fmt.Errorf("failed to decode seat cache: %w", err)
	}
	return &seatMap, nil
}

func (c *RedisSeatCache) Set(ctx context.Context, seatMap *models.SeatMap) error {
	raw, err := json.Marshal(seatMap)
	if err != nil {
		return fmt.Errorf("failed to encode seat map: %w", err)
	}
	if err := c.client.Set(ctx, SeatKey(seatMap.TripID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write seat cache: %w", err)
	}
	return nil
}

func (c *RedisSeatCache) Invalidate(ctx context.Context, tripID string) error {
	key := SeatKey(tripID)
	if c.repeatAfter > 0 {
		c.afterFunc(c.repeatAfter, func() {
			// the request context is gone by now
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			c.client.Del(ctx, key)
		})
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate seat cache: %w", err)
	}
	return nil
}

// NoopSeatCache is used when no Redis URL is configured
type NoopSeatCache struct{}

func (NoopSeatCache) Get(context.Context, string) (*models.SeatMap, error) { return nil, nil }
func (NoopSeatCache) Set(context.Context, *models.SeatMap) error { return nil }
func (NoopSeatCache) Invalidate(context.Context, string) error { return nil }
