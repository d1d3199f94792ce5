package domain

import "time"

// PlanUnknown is stored when unmapped prices are tolerated by configuration.
const PlanUnknown = "Unknown"

// Subscription is the local record of a paid entitlement window, derived from
// exactly one confirmed checkout session.
type Subscription struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	Plan                 string    `json:"plan"`
	CheckoutSessionID    string    `json:"checkoutSessionId"`
	PriceID              string    `json:"priceId"`
	RemoteSubscriptionID string    `json:"remoteSubscriptionId,omitempty"`
	StartDate            time.Time `json:"startDate"`
	EndDate              time.Time `json:"endDate"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ActiveAt reports whether the entitlement covers t (inclusive of EndDate).
func (s *Subscription) ActiveAt(t time.Time) bool {
	return !t.After(s.EndDate)
}
