package publish

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/redis"
)

const (
	latestKey = "indices:latest"
	latestTTL = 24 * time.Hour
)

// RedisPublisher mirrors the latest mapping into Redis so external
// dashboards can read it without touching Postgres. With Redis disabled
// every publish is a no-op.
type RedisPublisher struct {
	cache *redis.Cache
}

// NewRedisPublisher creates the Redis mirror.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{cache: redis.NewCache(client, "sectorindex")}
}

// PublishIndices writes the mapping under a single key.
func (p *RedisPublisher) PublishIndices(ctx context.Context, values []contracts.SectorIndexValue) error {
	payload := make(map[string]contracts.SectorIndexValue, len(values))
	for _, v := range values {
		payload[v.SectorCode] = v
	}

	if err := p.cache.Set(ctx, latestKey, payload, latestTTL); err != nil {
		return fmt.Errorf("mirror latest indices to redis: %w", err)
	}
	return nil
}
