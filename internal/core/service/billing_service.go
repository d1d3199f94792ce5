package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var _ ports.BillingService = (*BillingService)(nil)

const (
	defaultSubscriptionDays = 30
	customerLockTTL         = 30 * time.Second
)

// BillingConfig configures checkout redirects and price to plan mapping.
type BillingConfig struct {
	AppBaseURL       string
	Plans            map[string]string
	AllowUnknownPlan bool
	SubscriptionDays int
}

// BillingService links users to processor customers and turns paid checkout
// sessions into local subscriptions.
type BillingService struct {
	users     ports.UserRepository
	subs      ports.SubscriptionRepository
	processor ports.PaymentProcessor
	locker    ports.Locker
	logger    zerolog.Logger
	cfg       BillingConfig
	now       func() time.Time
	newID     func() string
}

func NewBillingService(
	users ports.UserRepository,
	subs ports.SubscriptionRepository,
	processor ports.PaymentProcessor,
	locker ports.Locker,
	logger zerolog.Logger,
	cfg BillingConfig,
) *BillingService {
	if cfg.SubscriptionDays <= 0 {
		cfg.SubscriptionDays = defaultSubscriptionDays
	}
	return &BillingService{
		users:     users,
		subs:      subs,
		processor: processor,
		locker:    locker,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// GetOrCreateCustomer returns the processor customer linked to the user,
// creating and linking one on first use. Concurrent callers for the same user
// end up with a single customer.
func (s *BillingService) GetOrCreateCustomer(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID != nil {
		return *user.BillingCustomerID, nil
	}

	release, err := s.locker.Acquire(ctx, "billing-customer:"+userID, customerLockTTL)
	if err != nil {
		return "", err
	}
	defer release()

	// Another request may have linked a customer while we waited.
	user, err = s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID != nil {
		return *user.BillingCustomerID, nil
	}

	customerID, err := s.processor.CreateCustomer(ctx, ports.CreateCustomerInput{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.DisplayName(),
		IdempotencyKey: "customer-" + user.ID,
	})
	if err != nil {
		return "", err
	}

	linked, err := s.users.LinkBillingCustomer(ctx, user.ID, customerID)
	if err != nil {
		return "", err
	}
	if linked != customerID {
		s.logger.Warn().Str("user_id", user.ID).Str("customer_id", customerID).Str("linked_customer_id", linked).Msg("customer created concurrently, keeping linked one")
	} else {
		s.logger.Info().Str("user_id", user.ID).Str("customer_id", linked).Msg("billing customer linked")
	}
	return linked, nil
}

func (s *BillingService) StartCheckout(ctx context.Context, priceID, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthenticated
	}
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", domain.NewValidationError(domain.FieldError{Field: "priceId", Message: "priceId is required"})
	}

	customerID, err := s.GetOrCreateCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(s.cfg.AppBaseURL, "/")
	url, err := s.processor.CreateCheckoutSession(ctx, ports.CreateCheckoutInput{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     userID,
		SuccessURL: base + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "/pricing",
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// ConfirmCheckout materializes the subscription bought by a paid checkout
// session. Repeated calls for one session return the same record.
func (s *BillingService) ConfirmCheckout(ctx context.Context, sessionID, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.NewValidationError(domain.FieldError{Field: "sessionId", Message: "sessionId is required"})
	}

	session, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.ErrPaymentIncomplete
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.BillingCustomerID == nil || *user.BillingCustomerID != session.CustomerID {
		return nil, domain.ErrForbidden
	}

	existing, err := s.subs.FindByCheckoutSession(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	plan, err := s.planFor(session.PriceID)
	if err != nil {
		s.logger.Error().Str("price_id", session.PriceID).Str("session_id", sessionID).Msg("checkout price has no plan")
		return nil, err
	}

	now := s.now().UTC()
	sub := &domain.Subscription{
		ID:                   s.newID(),
		UserID:               user.ID,
		Plan:                 plan,
		CheckoutSessionID:    sessionID,
		PriceID:              session.PriceID,
		RemoteSubscriptionID: session.SubscriptionID,
		StartDate:            now,
		EndDate:              now.AddDate(0, 0, s.cfg.SubscriptionDays),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	stored, created, err := s.subs.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().Str("user_id", user.ID).Str("subscription_id", stored.ID).Str("plan", stored.Plan).Msg("subscription created")
	}
	return stored, nil
}

func (s *BillingService) planFor(priceID string) (string, error) {
	if plan, ok := s.cfg.Plans[priceID]; ok {
		return plan, nil
	}
	if s.cfg.AllowUnknownPlan {
		return domain.PlanUnknown, nil
	}
	return "", domain.ErrUnknownPlan
}

func (s *BillingService) ListActive(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.subs.ListActiveByUser(ctx, userID, s.now().UTC())
}

func (s *BillingService) ListRemoteSubscriptions(ctx context.Context, userID string) ([]*domain.RemoteSubscription, error) {
	customerID, err := s.linkedCustomer(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []*domain.RemoteSubscription{}, nil
		}
		return nil, err
	}
	return s.processor.ListSubscriptions(ctx, customerID)
}

func (s *BillingService) CancelSubscription(ctx context.Context, userID, subscriptionID string, immediately bool) error {
	remote, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}

	if immediately {
		err = s.processor.CancelSubscription(ctx, remote.ID)
	} else {
		err = s.processor.SetCancelAtPeriodEnd(ctx, remote.ID, true)
	}
	if err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("remote_subscription_id", remote.ID).Bool("immediately", immediately).Msg("subscription cancelled")
	return nil
}

func (s *BillingService) ReactivateSubscription(ctx context.Context, userID, subscriptionID string) error {
	remote, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if remote.Status == domain.RemoteStatusCanceled {
		return domain.NewValidationError(domain.FieldError{Field: "subscriptionId", Message: "subscription is already canceled"})
	}

	if err := s.processor.SetCancelAtPeriodEnd(ctx, remote.ID, false); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("remote_subscription_id", remote.ID).Msg("subscription reactivated")
	return nil
}

func (s *BillingService) ListInvoices(ctx context.Context, userID string) ([]*domain.Invoice, error) {
	customerID, err := s.linkedCustomer(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []*domain.Invoice{}, nil
		}
		return nil, err
	}
	return s.processor.ListInvoices(ctx, customerID)
}

func (s *BillingService) VoidInvoice(ctx context.Context, userID, invoiceID string) (*domain.Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, domain.NewValidationError(domain.FieldError{Field: "invoiceId", Message: "invoiceId is required"})
	}
	customerID, err := s.linkedCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	inv, err := s.processor.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.CustomerID != customerID {
		return nil, domain.ErrForbidden
	}
	if inv.Status == domain.InvoiceStatusPaid || inv.Status == domain.InvoiceStatusVoid {
		return nil, domain.ErrInvoiceNotVoidable
	}

	voided, err := s.processor.VoidInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("invoice_id", inv.ID).Msg("invoice voided")
	return voided, nil
}

// linkedCustomer returns the user's customer id, or domain.ErrNotFound when
// the user has never started a checkout.
func (s *BillingService) linkedCustomer(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID == nil {
		return "", domain.ErrNotFound.WithMessage("no billing customer linked")
	}
	return *user.BillingCustomerID, nil
}

func (s *BillingService) ownedSubscription(ctx context.Context, userID, subscriptionID string) (*domain.RemoteSubscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, domain.NewValidationError(domain.FieldError{Field: "subscriptionId", Message: "subscriptionId is required"})
	}
	customerID, err := s.linkedCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	remote, err := s.processor.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if remote.CustomerID != customerID {
		return nil, domain.ErrForbidden
	}
	return remote, nil
}
