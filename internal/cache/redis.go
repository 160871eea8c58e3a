package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"sharpms/dashboard/internal/config"
)

const connectAttempts = 5

// NewRedisClient connects to the Redis instance shared by device storage,
// the view cache, watchers and the refresh pipeline. The first ping is
// retried so processes can start alongside Redis.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, clientName string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: clientName,
	})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(connectAttempts))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Check adapts a client to a health probe.
func Check(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
