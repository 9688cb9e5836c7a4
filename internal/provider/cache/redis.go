package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "offeragg:cache:"

// RedisStore keeps entries in Redis with a server-side expiry equal to the
// TTL, so stale keys disappear on their own.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &RedisStore{Client: c}, nil
}

// RedisKey is the Redis key an entry is stored under.
func RedisKey(key string) string { return redisPrefix + key }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.Client.Get(ctx, RedisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, RedisKey(key), b, ttl).Err()
}

func (s *RedisStore) Close() error { return s.Client.Close() }
