// Package kv wraps the Redis key-value backend used by DedupStore for
// URL/content hash TTL entries and the per-company/day fuzzy-title sorted
// sets, grounded on the redis/go-redis/v9 client shape used elsewhere in
// the retrieval pack.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper around *redis.Client exposing only the
// operations DedupStore and MessagingAdapters need.
type Client struct {
	rdb *redis.Client
}

// Config configures the underlying Redis connection.
type Config struct {
	Addr string
	DB   int
}

// New dials addr and verifies connectivity with a short-lived ping.
func New(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: connect %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Exists reports whether key is currently set.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// SetNX atomically sets key to value with the given TTL only if it does not
// already exist, returning whether this call was the one that set it. This
// is the atomic reserve-on-miss primitive DedupStore's URL/content layers
// rely on for idempotence under concurrent duplicate enqueue.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: setnx %s: %w", key, err)
	}
	return ok, nil
}

// ZAddTimestamped adds member to the sorted set key scored by score (a unix
// timestamp), and refreshes the set's TTL.
func (c *Client) ZAddTimestamped(ctx context.Context, key, member string, score float64, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kv: zadd %s: %w", key, err)
	}
	return nil
}

// ZRangeRecent returns up to limit members of the sorted set key with the
// highest scores, highest first; with timestamp scores these are the most
// recently added members. Used for the fuzzy-title scan window.
func (c *Client) ZRangeRecent(ctx context.Context, key string, limit int64) ([]string, error) {
	members, err := c.rdb.ZRevRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: zrevrange %s: %w", key, err)
	}
	return members, nil
}

// GetBytes fetches a raw binary value (used for the bloom filter's
// hot-path mirror).
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return b, nil
}

// SetBytes persists a raw binary value with no TTL.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}
