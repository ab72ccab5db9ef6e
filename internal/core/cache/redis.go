package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/Digesta/internal/core"
)

const keyPrefix = "digesta:summary:"

// RedisSummaryCache keeps AI summaries keyed by SummaryKey for ttl.
type RedisSummaryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ core.SummaryCache = (*RedisSummaryCache)(nil)

func NewRedisSummaryCache(client redis.Cmdable, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

// SummaryKey identifies a summary by requested length and exact input text.
func SummaryKey(length, text string) string {
	sum := sha256.Sum256([]byte(length + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns nil, nil on a miss.
func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*core.CachedSummary, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	var out core.CachedSummary
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return &out, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key string, v core.CachedSummary) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
