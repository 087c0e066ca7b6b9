package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the one Redis connection pool shared by the thread cache, the
// count cache and the comment event stream.
type Client struct {
	*redis.Client
}

// Connect parses redisURL (redis://[:password@]host:port[/db]) and pings the
// server, failing fast when it is unreachable.
func Connect(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := &Client{Client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[Redis] Connected: addr=%s db=%d", opts.Addr, opts.DB)
	return client, nil
}
