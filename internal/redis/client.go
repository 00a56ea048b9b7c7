package redis

import (
	"context"
	"fmt"
	"runtime"

	"github.com/redis/go-redis/v9"
)

// Client is the one shared Redis handle behind the feed cache, the
// event stream and the refresh-token store. Everything pools through
// it.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// URL (redis://[:password@]host:port[/db])
// and opens a pooled client against it.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// The feed workers issue bursts of parallel ZADDs on top of the
	// request-path traffic; give the pool headroom for those bursts and
	// keep a few connections warm between them.
	if opts.PoolSize == 0 {
		opts.PoolSize = 10*runtime.GOMAXPROCS(0) + 16
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = 2
	}

	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping checks the connection. Startup calls this to fail fast when
// Redis is down instead of limping along with a dead cache.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
