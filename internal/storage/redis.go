package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sharp:storage:"

// RedisStorage keeps each device's values in one hash whose expiry is
// pushed forward on every write.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func redisKey(deviceID string) string {
	return redisKeyPrefix + deviceID
}

func (s *RedisStorage) Get(ctx context.Context, deviceID string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, redisKey(deviceID), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStorage) Set(ctx context.Context, deviceID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	key := redisKey(deviceID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, deviceID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, redisKey(deviceID), keys...).Err(); err != nil {
		return fmt.Errorf("hdel: %w", err)
	}
	return nil
}
