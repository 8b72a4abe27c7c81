// Package cache holds the Redis-backed stats snapshot cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"talkquest/internal/models"
)

// PrefixStats namespaces stats snapshot keys
const PrefixStats = "talkquest:stats:"

var (
	// ErrCacheSerialization is returned when a cached value cannot be encoded or decoded
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty user id is given
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// RedisStatsCache stores stats snapshots as JSON strings with a TTL
type RedisStatsCache struct {
	client redis.UniversalClient
}

// NewRedisStatsCache wraps an existing client
func NewRedisStatsCache(client redis.UniversalClient) *RedisStatsCache {
	return &RedisStatsCache{client: client}
}

// Connect parses a redis:// URL, opens a client and checks it with PING
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func statsKey(userID string) string {
	return PrefixStats + userID
}

// Get returns the cached snapshot. A missing key is reported as ok=false.
func (c *RedisStatsCache) Get(ctx context.Context, userID string) (*models.StatsSnapshot, bool, error) {
	if userID == "" {
		return nil, false, ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

// Set stores snapshot for ttl
func (c *RedisStatsCache) Set(ctx context.Context, snapshot *models.StatsSnapshot, ttl time.Duration) error {
	if snapshot == nil || snapshot.UserID == "" {
		return ErrCacheKeyEmpty
	}

	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, statsKey(snapshot.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot of a user
func (c *RedisStatsCache) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrCacheKeyEmpty
	}
	if err := c.client.Del(ctx, statsKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func encodeSnapshot(snapshot *models.StatsSnapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*models.StatsSnapshot, error) {
	var snapshot models.StatsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return &snapshot, nil
}
