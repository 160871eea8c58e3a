package poll

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const watchKeyPrefix = "sharp:watch:"

// Registry records which devices are currently looking at a polled view.
// Each watch expires after ttl unless renewed.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	return &Registry{client: client, ttl: ttl, now: time.Now}
}

func watchKey(view string) string {
	return watchKeyPrefix + view
}

// watchScore is the sorted-set score of a watch that lapses at expiresAt.
func watchScore(expiresAt time.Time) float64 {
	return float64(expiresAt.UnixMilli())
}

// liveBound is the lowest score still considered live at now. A watch
// expiring exactly at now is kept.
func liveBound(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

func (r *Registry) Watch(ctx context.Context, view string, deviceID string) error {
	expiresAt := r.now().Add(r.ttl)
	err := r.client.ZAdd(ctx, watchKey(view), redis.Z{
		Score:  watchScore(expiresAt),
		Member: deviceID,
	}).Err()
	if err != nil {
		return fmt.Errorf("watch %s: %w", view, err)
	}
	return nil
}

// Active prunes expired watches and returns the devices still watching.
func (r *Registry) Active(ctx context.Context, view string) ([]string, error) {
	key := watchKey(view)
	now := liveBound(r.now())

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("prune watches: %w", err)
	}

	devices, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}
	return devices, nil
}
