// Package redis opens the shared go-redis connection used by the cache, queue and pubsub.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options selects the Redis server. Zero timeouts keep go-redis defaults.
type Options struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// Client embeds the go-redis client so packages can take *redis.Client directly.
type Client struct {
	*redis.Client
	addr   string
	logger *zap.Logger
}

// NewClient connects and pings once; startup fails fast when Redis is down.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		PoolSize:    opts.PoolSize,
		DialTimeout: opts.DialTimeout,
	})
	c := &Client{Client: rdb, addr: opts.Addr, logger: logger}
	if err := c.Check(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return c, nil
}

// Check pings the server with a short deadline; used by /health.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.addr, err)
	}
	return nil
}
