// Package redis wraps the Redis client used as the shared price cache. The
// market-data collectors publish last-known prices here; the engine's price
// oracle reads through it.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tradepulse/paper-engine/internal/config"
)

// Client wraps the Redis client with price-cache operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetPrice caches the last-known price for a symbol with TTL
func (c *Client) SetPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	key := priceKey(symbol)
	return c.rdb.Set(ctx, key, price, ttl).Err()
}

// GetPrice retrieves a cached price. Returns redis.Nil error on cache miss.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	key := priceKey(symbol)
	return c.rdb.Get(ctx, key).Float64()
}

// IsCacheMiss reports whether an error from GetPrice means the key is absent
// rather than Redis being unreachable.
func IsCacheMiss(err error) bool {
	return err == redis.Nil
}

func priceKey(symbol string) string {
	return fmt.Sprintf("quote:%s:price", symbol)
}
