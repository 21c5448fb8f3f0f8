// Package redis provides a recently-seen signature cache. The realtime
// indexer uses it to shed duplicate push notifications cheaply before
// falling back to the repository's FilterNew check, which stays the
// source of truth for dedup correctness.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the signature cache.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func seenKey(programID, signature string) string {
	return fmt.Sprintf("seen:%s:%s", programID, signature)
}

// MarkSeen records a signature sighting with a TTL. Returns true when
// this is the first sighting within the TTL window.
func (c *Client) MarkSeen(ctx context.Context, programID, signature string, ttl time.Duration) (bool, error) {
	first, err := c.rdb.SetNX(ctx, seenKey(programID, signature), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return first, nil
}
