package ports

import (
	"context"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// SubscriptionRepository persists local entitlement records. The checkout
// session id is unique at the storage layer.
type SubscriptionRepository interface {
	// Create inserts s unless a row for s.CheckoutSessionID already exists, in
	// which case the existing row is returned with created=false.
	Create(ctx context.Context, s *domain.Subscription) (stored *domain.Subscription, created bool, err error)
	FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*domain.Subscription, error)
	// ListActiveByUser returns rows with EndDate >= at, newest StartDate first.
	ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Subscription, error)
	// ListActiveLinked returns every row with EndDate >= at and a remote
	// subscription id, for reconciliation.
	ListActiveLinked(ctx context.Context, at time.Time) ([]*domain.Subscription, error)
	UpdateEndDate(ctx context.Context, id string, endDate time.Time) error
}
