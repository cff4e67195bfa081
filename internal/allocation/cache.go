package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vaultflow/internal/model"
)

// Snapshot is one aggregation pass, cached for cheap reads between
// refresh ticks. Never authoritative: a fresh Aggregate pass wins.
type Snapshot struct {
	Entries   []model.AllocationEntry `json:"entries"`
	Total     string                  `json:"total"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// ErrNoSnapshot is returned when the cache holds no snapshot.
var ErrNoSnapshot = errors.New("no allocation snapshot cached")

const snapshotKey = "allocation:snapshot"

// RedisCache stores the latest allocation snapshot as JSON with a TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis and verifies connectivity.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

// Store writes the snapshot, replacing any previous one.
func (c *RedisCache) Store(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal allocation snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or ErrNoSnapshot.
func (c *RedisCache) Load(ctx context.Context) (Snapshot, error) {
	payload, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode allocation snapshot: %w", err)
	}
	return snapshot, nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
