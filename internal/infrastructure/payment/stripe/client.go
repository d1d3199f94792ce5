// Package stripe adapts the Stripe API to ports.PaymentProcessor.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var _ ports.PaymentProcessor = (*Processor)(nil)

type Processor struct {
	api *client.API
}

// New builds a processor for the given secret key. backends may be nil to
// use the default HTTP backends.
func New(secretKey string, backends *stripego.Backends) *Processor {
	return &Processor{api: client.New(secretKey, backends)}
}

func (p *Processor) CreateCustomer(ctx context.Context, in ports.CreateCustomerInput) (string, error) {
	params := &stripego.CustomerParams{
		Email: stripego.String(in.Email),
		Name:  stripego.String(in.Name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", in.UserID)
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", mapError("create customer", err)
	}
	return c.ID, nil
}

func (p *Processor) CreateCheckoutSession(ctx context.Context, in ports.CreateCheckoutInput) (string, error) {
	params := &stripego.CheckoutSessionParams{
		Customer: stripego.String(in.CustomerID),
		Mode:     stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{Price: stripego.String(in.PriceID), Quantity: stripego.Int64(1)},
		},
		SuccessURL:        stripego.String(in.SuccessURL),
		CancelURL:         stripego.String(in.CancelURL),
		ClientReferenceID: stripego.String(in.UserID),
	}
	params.Context = ctx
	params.AddMetadata("user_id", in.UserID)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", mapError("create checkout session", err)
	}
	return s.URL, nil
}

func (p *Processor) GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, mapError("get checkout session", err)
	}

	out := &domain.CheckoutSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if s.LineItems != nil && len(s.LineItems.Data) > 0 && s.LineItems.Data[0].Price != nil {
		out.PriceID = s.LineItems.Data[0].Price.ID
	}
	return out, nil
}

func (p *Processor) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.RemoteSubscription, error) {
	params := &stripego.SubscriptionListParams{
		Customer: stripego.String(customerID),
		Status:   stripego.String("all"),
	}
	params.Context = ctx
	params.AddExpand("data.items.data.price.product")

	out := make([]*domain.RemoteSubscription, 0)
	it := p.api.Subscriptions.List(params)
	for it.Next() {
		out = append(out, toRemoteSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, mapError("list subscriptions", err)
	}
	return out, nil
}

func (p *Processor) GetSubscription(ctx context.Context, subscriptionID string) (*domain.RemoteSubscription, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")

	s, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, mapError("get subscription", err)
	}
	return toRemoteSubscription(s), nil
}

func (p *Processor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripego.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return mapError("cancel subscription", err)
	}
	return nil
}

func (p *Processor) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	params := &stripego.SubscriptionParams{CancelAtPeriodEnd: stripego.Bool(cancel)}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return mapError("update subscription", err)
	}
	return nil
}

func (p *Processor) ListInvoices(ctx context.Context, customerID string) ([]*domain.Invoice, error) {
	params := &stripego.InvoiceListParams{Customer: stripego.String(customerID)}
	params.Context = ctx

	out := make([]*domain.Invoice, 0)
	it := p.api.Invoices.List(params)
	for it.Next() {
		out = append(out, toInvoice(it.Invoice()))
	}
	if err := it.Err(); err != nil {
		return nil, mapError("list invoices", err)
	}
	return out, nil
}

func (p *Processor) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	params := &stripego.InvoiceParams{}
	params.Context = ctx

	inv, err := p.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, mapError("get invoice", err)
	}
	return toInvoice(inv), nil
}

func (p *Processor) VoidInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	params := &stripego.InvoiceVoidInvoiceParams{}
	params.Context = ctx

	inv, err := p.api.Invoices.VoidInvoice(invoiceID, params)
	if err != nil {
		return nil, mapError("void invoice", err)
	}
	return toInvoice(inv), nil
}

// mapError turns Stripe 404s into domain.ErrNotFound and wraps the rest.
func mapError(op string, err error) error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripego.ErrorCodeResourceMissing {
			return domain.ErrNotFound.Wrap(fmt.Errorf("stripe %s: %w", op, err))
		}
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func toRemoteSubscription(s *stripego.Subscription) *domain.RemoteSubscription {
	out := &domain.RemoteSubscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		CurrentPeriodStart: unix(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         unixPtr(s.CanceledAt),
		Created:            unix(s.Created),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		out.Plan = toRemotePlan(s.Items.Data[0].Price)
	}
	return out
}

func toRemotePlan(pr *stripego.Price) domain.RemotePlan {
	plan := domain.RemotePlan{
		PriceID:  pr.ID,
		Name:     pr.Nickname,
		Amount:   float64(pr.UnitAmount) / 100,
		Currency: string(pr.Currency),
	}
	if pr.Product != nil && pr.Product.Name != "" {
		plan.Name = pr.Product.Name
	}
	if pr.Recurring != nil {
		plan.Interval = string(pr.Recurring.Interval)
		plan.IntervalCount = pr.Recurring.IntervalCount
	}
	return plan
}

func toInvoice(inv *stripego.Invoice) *domain.Invoice {
	out := &domain.Invoice{
		ID:               inv.ID,
		Number:           inv.Number,
		Status:           string(inv.Status),
		Amount:           float64(inv.Total) / 100,
		Currency:         string(inv.Currency),
		Created:          unix(inv.Created),
		DueDate:          unixPtr(inv.DueDate),
		InvoicePDF:       inv.InvoicePDF,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		Description:      inv.Description,
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.StatusTransitions != nil {
		out.PaidAt = unixPtr(inv.StatusTransitions.PaidAt)
	}
	return out
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
