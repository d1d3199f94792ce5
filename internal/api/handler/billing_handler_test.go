package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

type stubBillingService struct {
	startCheckoutFn func(ctx context.Context, priceID, userID string) (string, error)
	confirmFn       func(ctx context.Context, sessionID, userID string) (*domain.Subscription, error)
	cancelFn        func(ctx context.Context, userID, subscriptionID string, immediately bool) error
	voidFn          func(ctx context.Context, userID, invoiceID string) (*domain.Invoice, error)
}

func (s *stubBillingService) GetOrCreateCustomer(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubBillingService) StartCheckout(ctx context.Context, priceID, userID string) (string, error) {
	return s.startCheckoutFn(ctx, priceID, userID)
}

func (s *stubBillingService) ConfirmCheckout(ctx context.Context, sessionID, userID string) (*domain.Subscription, error) {
	return s.confirmFn(ctx, sessionID, userID)
}

func (s *stubBillingService) ListActive(context.Context, string) ([]*domain.Subscription, error) {
	return nil, nil
}

func (s *stubBillingService) ListRemoteSubscriptions(context.Context, string) ([]*domain.RemoteSubscription, error) {
	return []*domain.RemoteSubscription{}, nil
}

func (s *stubBillingService) CancelSubscription(ctx context.Context, userID, subscriptionID string, immediately bool) error {
	return s.cancelFn(ctx, userID, subscriptionID, immediately)
}

func (s *stubBillingService) ReactivateSubscription(context.Context, string, string) error {
	return nil
}

func (s *stubBillingService) ListInvoices(context.Context, string) ([]*domain.Invoice, error) {
	return []*domain.Invoice{}, nil
}

func (s *stubBillingService) VoidInvoice(ctx context.Context, userID, invoiceID string) (*domain.Invoice, error) {
	return s.voidFn(ctx, userID, invoiceID)
}

func TestBillingHandler_Checkout_UsesSessionUser(t *testing.T) {
	stub := &stubBillingService{
		startCheckoutFn: func(_ context.Context, priceID, userID string) (string, error) {
			if priceID != "price_pro" || userID != "u1" {
				t.Fatalf("unexpected args %s %s", priceID, userID)
			}
			return "https://checkout.example.com/c/1", nil
		},
	}
	h := NewBillingHandler(stub)

	for _, body := range []string{`{"priceId":"price_pro"}`, `{"priceId":"price_pro","userId":"u1"}`} {
		c, rec := newJSONContext(http.MethodPost, "/billing/checkout", body)
		c.Set("user_id", "u1")
		if err := h.Checkout(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"url":"https://checkout.example.com/c/1"`) {
			t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	}
}

func TestBillingHandler_RejectsForeignUserID(t *testing.T) {
	stub := &stubBillingService{
		startCheckoutFn: func(context.Context, string, string) (string, error) {
			t.Fatalf("should not be called")
			return "", nil
		},
		confirmFn: func(context.Context, string, string) (*domain.Subscription, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
		cancelFn: func(context.Context, string, string, bool) error {
			t.Fatalf("should not be called")
			return nil
		},
		voidFn: func(context.Context, string, string) (*domain.Invoice, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewBillingHandler(stub)

	c, _ := newJSONContext(http.MethodPost, "/billing/checkout", `{"priceId":"p","userId":"u2"}`)
	c.Set("user_id", "u1")
	if err := h.Checkout(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("checkout: expected ErrForbidden, got %v", err)
	}

	c, _ = newJSONContext(http.MethodPost, "/billing/subscriptions/confirm", `{"sessionId":"cs","userId":"u2"}`)
	c.Set("user_id", "u1")
	if err := h.ConfirmCheckout(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("confirm: expected ErrForbidden, got %v", err)
	}

	c, _ = newJSONContext(http.MethodDelete, "/billing/subscriptions", `{"subscriptionId":"sub","userId":"u2"}`)
	c.Set("user_id", "u1")
	if err := h.CancelSubscription(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cancel: expected ErrForbidden, got %v", err)
	}

	c, _ = newJSONContext(http.MethodDelete, "/billing/invoices", `{"invoiceId":"in","userId":"u2"}`)
	c.Set("user_id", "u1")
	if err := h.VoidInvoice(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("void: expected ErrForbidden, got %v", err)
	}
}

func TestBillingHandler_RequiresSession(t *testing.T) {
	h := NewBillingHandler(&stubBillingService{})
	c, _ := newJSONContext(http.MethodPost, "/billing/checkout", `{"priceId":"p"}`)
	if err := h.Checkout(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBillingHandler_ConfirmCheckout(t *testing.T) {
	stub := &stubBillingService{
		confirmFn: func(_ context.Context, sessionID, userID string) (*domain.Subscription, error) {
			return &domain.Subscription{ID: "s1", UserID: userID, CheckoutSessionID: sessionID, Plan: "Pro"}, nil
		},
	}
	h := NewBillingHandler(stub)

	c, rec := newJSONContext(http.MethodPost, "/billing/subscriptions/confirm", `{"sessionId":"cs_1"}`)
	c.Set("user_id", "u1")
	if err := h.ConfirmCheckout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"checkoutSessionId":"cs_1"`) || !strings.Contains(rec.Body.String(), `"plan":"Pro"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestBillingHandler_CancelSubscription(t *testing.T) {
	var gotImmediately bool
	stub := &stubBillingService{
		cancelFn: func(_ context.Context, userID, subscriptionID string, immediately bool) error {
			gotImmediately = immediately
			return nil
		},
	}
	h := NewBillingHandler(stub)

	c, rec := newJSONContext(http.MethodDelete, "/billing/subscriptions", `{"subscriptionId":"sub_1","cancelImmediately":true}`)
	c.Set("user_id", "u1")
	if err := h.CancelSubscription(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !gotImmediately || !strings.Contains(rec.Body.String(), "Subscription canceled") {
		t.Fatalf("unexpected result %v %s", gotImmediately, rec.Body.String())
	}
}

func TestBillingHandler_ListActiveNeverNull(t *testing.T) {
	h := NewBillingHandler(&stubBillingService{})
	c, rec := newJSONContext(http.MethodGet, "/billing/subscriptions/active", "")
	c.Set("user_id", "u1")
	if err := h.ListActive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"subscriptions":[]}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
