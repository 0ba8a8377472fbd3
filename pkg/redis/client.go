// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, prefixed keys, and the get/set/scan operations the session store
// needs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client. Every key passed to it is namespaced with
// the configured prefix.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

// Key returns the namespaced form of id.
func (c *Client) Key(id string) string {
	return c.prefix + id
}

// Get returns the raw value stored under id.
func (c *Client) Get(ctx context.Context, id string) ([]byte, error) {
	return c.rdb.Get(ctx, c.Key(id)).Bytes()
}

// GetEx returns the raw value stored under id and resets its TTL. A zero
// TTL leaves the key without expiry.
func (c *Client) GetEx(ctx context.Context, id string, ttl time.Duration) ([]byte, error) {
	return c.rdb.GetEx(ctx, c.Key(id), ttl).Bytes()
}

// Set stores value under id with the given TTL. A zero TTL never expires.
func (c *Client) Set(ctx context.Context, id string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.Key(id), value, ttl).Err()
}

// Del deletes one or more ids.
func (c *Client) Del(ctx context.Context, ids ...string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// ScanIDs returns every id under the prefix, with the prefix stripped.
func (c *Client) ScanIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(c.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning prefix %s: %w", c.prefix, err)
	}
	return ids, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
