package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/api/metrics"
	"github.com/lumenapp/accounts-api/internal/api/middleware"
	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

type BillingHandler struct {
	billing ports.BillingService
}

func NewBillingHandler(billing ports.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
	UserID  string `json:"userId"`
}

type confirmRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type subscriptionActionRequest struct {
	SubscriptionID    string `json:"subscriptionId"`
	UserID            string `json:"userId"`
	CancelImmediately bool   `json:"cancelImmediately"`
}

type voidInvoiceRequest struct {
	InvoiceID string `json:"invoiceId"`
	UserID    string `json:"userId"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type subscriptionResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
}

type subscriptionsResponse struct {
	Subscriptions []*domain.Subscription `json:"subscriptions"`
}

type remoteSubscriptionsResponse struct {
	Subscriptions []*domain.RemoteSubscription `json:"subscriptions"`
}

type invoicesResponse struct {
	Invoices []*domain.Invoice `json:"invoices"`
}

type invoiceResponse struct {
	Invoice *domain.Invoice `json:"invoice"`
}

// owner resolves the acting user: the session user, provided the optional
// userId in the payload agrees with it.
func owner(c echo.Context, claimed string) (string, error) {
	if err := middleware.CheckOwner(c, claimed); err != nil {
		return "", err
	}
	return sessionUser(c)
}

// Checkout starts a subscription checkout.
//
// @Summary      Start checkout
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      checkoutRequest  true  "Price"
// @Success      200   {object}  checkoutResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /billing/checkout [post]
func (h *BillingHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	uid, err := owner(c, req.UserID)
	if err != nil {
		return err
	}

	url, err := h.billing.StartCheckout(c.Request().Context(), req.PriceID, uid)
	metrics.CheckoutsTotal.WithLabelValues("started", metrics.Result(string(domain.KindOf(err)), err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, checkoutResponse{URL: url})
}

// ConfirmCheckout materializes the subscription of a paid checkout session.
//
// @Summary      Confirm checkout
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      confirmRequest  true  "Checkout session"
// @Success      200   {object}  subscriptionResponse
// @Failure      400   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Router       /billing/subscriptions/confirm [post]
func (h *BillingHandler) ConfirmCheckout(c echo.Context) error {
	var req confirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	uid, err := owner(c, req.UserID)
	if err != nil {
		return err
	}

	sub, err := h.billing.ConfirmCheckout(c.Request().Context(), req.SessionID, uid)
	metrics.CheckoutsTotal.WithLabelValues("confirmed", metrics.Result(string(domain.KindOf(err)), err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subscriptionResponse{Subscription: sub})
}

// ListSubscriptions lists the processor subscriptions of the user.
//
// @Summary      List processor subscriptions
// @Tags         billing
// @Produce      json
// @Param        userId  query     string  false  "Must match the session user"
// @Success      200     {object}  remoteSubscriptionsResponse
// @Router       /billing/subscriptions [get]
func (h *BillingHandler) ListSubscriptions(c echo.Context) error {
	uid, err := sessionUser(c)
	if err != nil {
		return err
	}
	subs, err := h.billing.ListRemoteSubscriptions(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, remoteSubscriptionsResponse{Subscriptions: subs})
}

// ListActive lists the local subscriptions that currently grant access.
//
// @Summary      List active entitlements
// @Tags         billing
// @Produce      json
// @Param        userId  query     string  false  "Must match the session user"
// @Success      200     {object}  subscriptionsResponse
// @Router       /billing/subscriptions/active [get]
func (h *BillingHandler) ListActive(c echo.Context) error {
	uid, err := sessionUser(c)
	if err != nil {
		return err
	}
	subs, err := h.billing.ListActive(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []*domain.Subscription{}
	}
	return c.JSON(http.StatusOK, subscriptionsResponse{Subscriptions: subs})
}

// CancelSubscription cancels now or at the end of the current period.
//
// @Summary      Cancel subscription
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      subscriptionActionRequest  true  "Subscription"
// @Success      200   {object}  messageResponse
// @Failure      403   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Router       /billing/subscriptions [delete]
func (h *BillingHandler) CancelSubscription(c echo.Context) error {
	var req subscriptionActionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	uid, err := owner(c, req.UserID)
	if err != nil {
		return err
	}

	if err := h.billing.CancelSubscription(c.Request().Context(), uid, req.SubscriptionID, req.CancelImmediately); err != nil {
		return err
	}
	msg := "Subscription will be canceled at the end of the current period"
	if req.CancelImmediately {
		msg = "Subscription canceled"
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

// ReactivateSubscription undoes a pending cancellation.
//
// @Summary      Reactivate subscription
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      subscriptionActionRequest  true  "Subscription"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /billing/subscriptions [patch]
func (h *BillingHandler) ReactivateSubscription(c echo.Context) error {
	var req subscriptionActionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	uid, err := owner(c, req.UserID)
	if err != nil {
		return err
	}

	if err := h.billing.ReactivateSubscription(c.Request().Context(), uid, req.SubscriptionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Subscription reactivated"})
}

// ListInvoices lists the processor invoices of the user.
//
// @Summary      List invoices
// @Tags         billing
// @Produce      json
// @Param        userId  query     string  false  "Must match the session user"
// @Success      200     {object}  invoicesResponse
// @Router       /billing/invoices [get]
func (h *BillingHandler) ListInvoices(c echo.Context) error {
	uid, err := sessionUser(c)
	if err != nil {
		return err
	}
	invoices, err := h.billing.ListInvoices(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invoicesResponse{Invoices: invoices})
}

// VoidInvoice voids an open invoice.
//
// @Summary      Void invoice
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      voidInvoiceRequest  true  "Invoice"
// @Success      200   {object}  invoiceResponse
// @Failure      400   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /billing/invoices [delete]
func (h *BillingHandler) VoidInvoice(c echo.Context) error {
	var req voidInvoiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	uid, err := owner(c, req.UserID)
	if err != nil {
		return err
	}

	inv, err := h.billing.VoidInvoice(c.Request().Context(), uid, req.InvoiceID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invoiceResponse{Invoice: inv})
}
