package ports

import (
	"context"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// BillingService links users to processor customers and materializes local
// subscriptions from completed checkouts.
type BillingService interface {
	GetOrCreateCustomer(ctx context.Context, userID string) (string, error)
	StartCheckout(ctx context.Context, priceID, userID string) (string, error)
	ConfirmCheckout(ctx context.Context, sessionID, userID string) (*domain.Subscription, error)
	ListActive(ctx context.Context, userID string) ([]*domain.Subscription, error)

	ListRemoteSubscriptions(ctx context.Context, userID string) ([]*domain.RemoteSubscription, error)
	CancelSubscription(ctx context.Context, userID, subscriptionID string, immediately bool) error
	ReactivateSubscription(ctx context.Context, userID, subscriptionID string) error

	ListInvoices(ctx context.Context, userID string) ([]*domain.Invoice, error)
	VoidInvoice(ctx context.Context, userID, invoiceID string) (*domain.Invoice, error)
}

// SubscriptionSyncer reconciles one local subscription with the processor.
type SubscriptionSyncer interface {
	Sync(ctx context.Context, sub *domain.Subscription) error
}

// SyncQueue hands subscriptions to reconciliation workers.
type SyncQueue interface {
	Enqueue(ctx context.Context, sub *domain.Subscription) error
}
