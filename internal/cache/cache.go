// Package cache is the key-value cache adapter: ranked trending snapshots
// as sorted sets and personalized feed lists as TTL-bound JSON values.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reverbhq/reverb/internal/config"
)

// Cache wraps the redis client used for ranked snapshots and feed caching
type Cache struct {
	client *redis.Client
}

// New creates a cache backed by the configured redis instance
func New(cfg *config.Cache) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client}
}

// Ping checks connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client
func (c *Cache) Close() error {
	return c.client.Close()
}

// RankedEntry is one member of a ranked list
type RankedEntry struct {
	EventID string
	Score   int64
}

func rankingKey(period string, kind int) string {
	return "trending:" + period + ":" + strconv.Itoa(kind)
}

func feedKey(userID string) string {
	return "feed:" + userID
}

// PublishRanking replaces the ranked set for (period, kind) and bounds it
// with the given TTL. The delete, inserts, and expiry run in one pipeline.
func (c *Cache) PublishRanking(ctx context.Context, period string, kind int, entries []RankedEntry, ttl time.Duration) error {
	key := rankingKey(period, kind)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(entries) > 0 {
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{Score: float64(e.Score), Member: e.EventID}
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish ranking %s: %w", key, err)
	}
	return nil
}

// GetRanking returns up to limit entries for (period, kind), best first
func (c *Cache) GetRanking(ctx context.Context, period string, kind int, limit int) ([]RankedEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	key := rankingKey(period, kind)
	members, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking %s: %w", key, err)
	}

	entries := make([]RankedEntry, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, RankedEntry{EventID: id, Score: int64(m.Score)})
	}
	return entries, nil
}

// SetFeed caches a user's full ordered feed with a TTL
func (c *Cache) SetFeed(ctx context.Context, userID string, eventIDs []string, ttl time.Duration) error {
	data, err := json.Marshal(eventIDs)
	if err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}

	if err := c.client.Set(ctx, feedKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache feed: %w", err)
	}
	return nil
}

// GetFeed returns a user's cached feed, or nil on a miss
func (c *Cache) GetFeed(ctx context.Context, userID string) ([]string, error) {
	data, err := c.client.Get(ctx, feedKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached feed: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// Treat a corrupt entry as a miss; it will be rewritten.
		return nil, nil
	}
	return ids, nil
}

// InvalidateFeed drops a user's cached feed
func (c *Cache) InvalidateFeed(ctx context.Context, userID string) error {
	return c.client.Del(ctx, feedKey(userID)).Err()
}
