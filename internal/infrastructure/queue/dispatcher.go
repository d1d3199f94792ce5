package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

var _ ports.SyncQueue = (*Dispatcher)(nil)

// Dispatcher routes subscriptions to a fixed set of workers by hashing the
// owning user id, so one user's subscriptions are reconciled in order.
type Dispatcher struct {
	workers []chan *domain.Subscription
	syncer  ports.SubscriptionSyncer
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, syncer ports.SubscriptionSyncer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan *domain.Subscription, numWorkers),
		syncer:  syncer,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan *domain.Subscription, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands sub to the worker responsible for its user. It blocks while
// that worker's buffer is full and gives up when ctx ends.
func (d *Dispatcher) Enqueue(ctx context.Context, sub *domain.Subscription) error {
	select {
	case d.workers[d.shardIndex(sub.UserID)] <- sub:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *domain.Subscription) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-ch:
			if !ok {
				return
			}
			if err := d.syncer.Sync(ctx, sub); err != nil {
				d.log.Error().Err(err).
					Str("subscription_id", sub.ID).
					Str("user_id", sub.UserID).
					Int("worker_id", id).
					Msg("subscription sync failed")
			}
		}
	}
}
