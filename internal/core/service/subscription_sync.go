package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var _ ports.SubscriptionSyncer = (*SubscriptionSyncer)(nil)

// SyncOutcome records what a reconciliation did to one subscription.
type SyncOutcome string

const (
	SyncUnchanged SyncOutcome = "unchanged"
	SyncExtended  SyncOutcome = "extended"
	SyncEnded     SyncOutcome = "ended"
	SyncFailed    SyncOutcome = "failed"
)

// SyncObserver is notified after every reconciliation attempt.
type SyncObserver func(outcome SyncOutcome)

// SubscriptionSyncer aligns a local end date with the processor's view of the
// subscription. A remote cancellation ends the entitlement now; a renewal
// extends it to the new period end.
type SubscriptionSyncer struct {
	subs      ports.SubscriptionRepository
	processor ports.PaymentProcessor
	logger    zerolog.Logger
	now       func() time.Time
	observe   SyncObserver
}

func NewSubscriptionSyncer(subs ports.SubscriptionRepository, processor ports.PaymentProcessor, logger zerolog.Logger, observe SyncObserver) *SubscriptionSyncer {
	if observe == nil {
		observe = func(SyncOutcome) {}
	}
	return &SubscriptionSyncer{subs: subs, processor: processor, logger: logger, now: time.Now, observe: observe}
}

func (s *SubscriptionSyncer) Sync(ctx context.Context, sub *domain.Subscription) error {
	outcome, err := s.sync(ctx, sub)
	if err != nil {
		s.observe(SyncFailed)
		return err
	}
	s.observe(outcome)
	return nil
}

func (s *SubscriptionSyncer) sync(ctx context.Context, sub *domain.Subscription) (SyncOutcome, error) {
	if sub.RemoteSubscriptionID == "" {
		return SyncUnchanged, nil
	}

	remote, err := s.processor.GetSubscription(ctx, sub.RemoteSubscriptionID)
	if err != nil {
		return SyncFailed, err
	}

	now := s.now().UTC()
	switch remote.Status {
	case domain.RemoteStatusCanceled, domain.RemoteStatusUnpaid, domain.RemoteStatusIncompleteExpired:
		if !sub.EndDate.After(now) {
			return SyncUnchanged, nil
		}
		if err := s.subs.UpdateEndDate(ctx, sub.ID, now); err != nil {
			return SyncFailed, err
		}
		s.logger.Info().Str("subscription_id", sub.ID).Str("remote_status", remote.Status).Msg("subscription ended by processor")
		return SyncEnded, nil

	case domain.RemoteStatusActive, domain.RemoteStatusTrialing:
		if !remote.CurrentPeriodEnd.After(sub.EndDate) {
			return SyncUnchanged, nil
		}
		if err := s.subs.UpdateEndDate(ctx, sub.ID, remote.CurrentPeriodEnd.UTC()); err != nil {
			return SyncFailed, err
		}
		s.logger.Info().Str("subscription_id", sub.ID).Time("end_date", remote.CurrentPeriodEnd).Msg("subscription extended")
		return SyncExtended, nil
	}

	return SyncUnchanged, nil
}

// SyncScheduler periodically queues every active, processor-backed
// subscription for reconciliation.
type SyncScheduler struct {
	subs     ports.SubscriptionRepository
	queue    ports.SyncQueue
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	onPass   func(took time.Duration)
}

func NewSyncScheduler(subs ports.SubscriptionRepository, queue ports.SyncQueue, interval time.Duration, logger zerolog.Logger) *SyncScheduler {
	return &SyncScheduler{subs: subs, queue: queue, interval: interval, logger: logger, now: time.Now, onPass: func(time.Duration) {}}
}

// OnPass registers f to receive the duration of every scheduled pass.
func (j *SyncScheduler) OnPass(f func(took time.Duration)) *SyncScheduler {
	j.onPass = f
	return j
}

// Run blocks until ctx is cancelled. A non-positive interval disables the job.
func (j *SyncScheduler) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info().Msg("subscription sync disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.interval).Msg("subscription sync started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("subscription sync stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error().Err(err).Msg("subscription sync pass failed")
			}
			j.onPass(time.Since(start))
		}
	}
}

// RunOnce enqueues one pass and returns how many subscriptions were queued.
func (j *SyncScheduler) RunOnce(ctx context.Context) (int, error) {
	subs, err := j.subs.ListActiveLinked(ctx, j.now().UTC())
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, sub := range subs {
		if err := j.queue.Enqueue(ctx, sub); err != nil {
			return queued, err
		}
		queued++
	}
	j.logger.Debug().Int("queued", queued).Msg("subscription sync pass queued")
	return queued, nil
}
