package ports

import (
	"context"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// CreateCustomerInput describes the billable party.
type CreateCustomerInput struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

// CreateCheckoutInput describes a subscription-mode checkout.
type CreateCheckoutInput struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// PaymentProcessor is the thin slice of the processor API this service uses.
// Lookups of missing objects return domain.ErrNotFound.
type PaymentProcessor interface {
	CreateCustomer(ctx context.Context, in CreateCustomerInput) (customerID string, err error)
	CreateCheckoutSession(ctx context.Context, in CreateCheckoutInput) (url string, err error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)

	ListSubscriptions(ctx context.Context, customerID string) ([]*domain.RemoteSubscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.RemoteSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error

	ListInvoices(ctx context.Context, customerID string) ([]*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
}
