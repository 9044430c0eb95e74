package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

const redisCachePrefix = "summary_cache:"

// RedisResultCache is the shared-across-instances ResultCache backend. Any
// backend failure degrades to a cache miss; it is never surfaced to callers.
type RedisResultCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Logger
}

// NewRedisResultCache wraps an existing Redis client. ttl <= 0 stores entries
// without expiry.
func NewRedisResultCache(rdb *redis.Client, ttl time.Duration, log *logrus.Logger) *RedisResultCache {
	return &RedisResultCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisResultCache) Get(ctx context.Context, key string) (*core.SummaryData, bool) {
	s, err := c.rdb.Get(ctx, redisCachePrefix+key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("redis cache read failed, treating as miss")
		return nil, false
	}
	var data core.SummaryData
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		// corrupt entry: drop it and treat as miss
		_ = c.rdb.Del(ctx, redisCachePrefix+key).Err()
		return nil, false
	}
	return &data, true
}

func (c *RedisResultCache) Put(ctx context.Context, key string, value *core.SummaryData) {
	if value == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisCachePrefix+key, b, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("redis cache write failed")
	}
}
