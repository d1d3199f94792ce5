package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var _ ports.Throttle = (*Throttle)(nil)

// Throttle is a fixed-window counter backed by Redis.
// Key format: throttle:<key>
type Throttle struct {
	client *redis.Client
}

func NewThrottle(client *redis.Client) *Throttle {
	return &Throttle{client: client}
}

// Allow increments the window counter and reports whether it is within limit.
// The window starts with the first hit.
func (t *Throttle) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := t.key(key)
	n, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}
	if n == 1 {
		if err := t.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("throttle expire: %w", err)
		}
	}
	return n <= int64(limit), nil
}

func (t *Throttle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.key(key)).Err()
}

func (t *Throttle) key(key string) string {
	return "throttle:" + key
}
