package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var (
	_ ports.Throttle = (*Throttle)(nil)
	_ ports.Locker   = (*Locker)(nil)
)

type window struct {
	count   int
	resetAt time.Time
}

// Throttle is a fixed-window counter for single-instance deployments.
type Throttle struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewThrottle() *Throttle {
	return &Throttle{windows: make(map[string]*window), now: time.Now}
}

func (t *Throttle) Allow(_ context.Context, key string, limit int, d time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w, ok := t.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		t.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

func (t *Throttle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key)
	return nil
}

// Locker hands out per-key mutexes. The ttl is ignored: locks are released
// by their holder.
type Locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

func (l *Locker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
