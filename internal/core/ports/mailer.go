package ports

import (
	"context"
	"time"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, validFor time.Duration) error
	SendPasswordReset(ctx context.Context, to, resetLink string, validFor time.Duration) error
}

// Throttle counts hits per key inside a fixed window.
type Throttle interface {
	// Allow records a hit and reports whether the count is still within limit.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Locker provides short-lived mutual exclusion across processes.
type Locker interface {
	// Acquire blocks until the lock is held or ctx ends. The returned func
	// releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
