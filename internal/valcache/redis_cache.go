// Package valcache caches validation results in Redis, keyed by project
// and bundle content hash, so an unchanged bundle does not get re-validated
// on every request.
package valcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 15 * time.Minute

// CachedRun is the cache entry: the persisted run id plus the raw result
// JSON, so a cache hit can be served without touching the database.
type CachedRun struct {
	RunID    string          `json:"run_id"`
	Summary  json.RawMessage `json:"summary"`
	Issues   json.RawMessage `json:"issues"`
	Failures json.RawMessage `json:"failures,omitempty"`
	CachedAt time.Time       `json:"cached_at"`
}

// Cache is the Redis-backed validation-result cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to Redis and verifies the connection.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient builds a cache over an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl, prefix: "valrun:"}
}

func (c *Cache) key(projectID, bundleHash string) string {
	return c.prefix + projectID + ":" + bundleHash
}

// Get returns the cached run for this exact bundle content, if any.
func (c *Cache) Get(ctx context.Context, projectID, bundleHash string) (CachedRun, bool, error) {
	jsonData, err := c.client.Get(ctx, c.key(projectID, bundleHash)).Result()
	if err == redis.Nil {
		return CachedRun{}, false, nil
	}
	if err != nil {
		return CachedRun{}, false, fmt.Errorf("get cached run: %w", err)
	}
	var run CachedRun
	if err := json.Unmarshal([]byte(jsonData), &run); err != nil {
		return CachedRun{}, false, fmt.Errorf("unmarshal cached run: %w", err)
	}
	return run, true, nil
}

// Put stores a run result under the bundle hash with the cache TTL.
func (c *Cache) Put(ctx context.Context, projectID, bundleHash string, run CachedRun) error {
	run.CachedAt = time.Now()
	jsonData, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal cached run: %w", err)
	}
	if err := c.client.Set(ctx, c.key(projectID, bundleHash), jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("put cached run: %w", err)
	}
	return nil
}

// Invalidate drops every cached run for a project. Called after auto-fix
// patches change document content.
func (c *Cache) Invalidate(ctx context.Context, projectID string) error {
	var cursor uint64
	pattern := c.prefix + projectID + ":*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan cached runs: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cached runs: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
