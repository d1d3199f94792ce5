package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/ports"
)

const lockRetryInterval = 50 * time.Millisecond

var _ ports.Locker = (*Locker)(nil)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements short-lived locks with SET NX PX.
// Key format: lock:<key>
type Locker struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewLocker(client *redis.Client, log zerolog.Logger) *Locker {
	return &Locker{client: client, log: log}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock acquire: %w", err)
		}
		if ok {
			return func() {
				// The request context may already be done; release on a fresh one.
				rctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
				defer cancel()
				if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil {
					l.log.Warn().Err(err).Str("key", k).Msg("lock release failed")
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
