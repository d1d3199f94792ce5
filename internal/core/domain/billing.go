package domain

import "time"

// Payment statuses reported by the processor for a checkout session.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Remote subscription statuses the reconciliation job reacts to.
const (
	RemoteStatusActive            = "active"
	RemoteStatusTrialing          = "trialing"
	RemoteStatusCanceled          = "canceled"
	RemoteStatusUnpaid            = "unpaid"
	RemoteStatusIncompleteExpired = "incomplete_expired"
)

// Invoice statuses relevant to voiding.
const (
	InvoiceStatusPaid = "paid"
	InvoiceStatusVoid = "void"
)

// CheckoutSession is the subset of a processor checkout session the
// reconciler needs.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	PaymentStatus  string
	PriceID        string
	SubscriptionID string
}

// RemotePlan describes the price attached to a remote subscription.
type RemotePlan struct {
	PriceID       string  `json:"id"`
	Name          string  `json:"productName"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Interval      string  `json:"interval"`
	IntervalCount int64   `json:"intervalCount"`
}

// RemoteSubscription is the processor-side subscription object.
type RemoteSubscription struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"-"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time `json:"canceledAt,omitempty"`
	Created            time.Time  `json:"created"`
	Plan               RemotePlan `json:"plan"`
}

// Invoice is the processor-side invoice object.
type Invoice struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"-"`
	Number           string     `json:"number"`
	Status           string     `json:"status"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	Created          time.Time  `json:"created"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	InvoicePDF       string     `json:"invoicePdf,omitempty"`
	HostedInvoiceURL string     `json:"hostedInvoiceUrl,omitempty"`
	Description      string     `json:"description"`
}
