// Package memory is a process-local record store used for development and
// tests. It enforces the same uniqueness rules as the database stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var (
	_ ports.UserRepository         = (*UserStore)(nil)
	_ ports.SubscriptionRepository = (*SubscriptionStore)(nil)
)

var errSubscriptionNotFound = domain.ErrNotFound.WithMessage("subscription not found")

// UserStore keeps users keyed by id with a unique email index.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return nil, domain.ErrConflict
	}
	if _, exists := s.byID[user.ID]; exists {
		return nil, domain.ErrConflict
	}
	s.byID[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return cloneUser(user), nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) SetOTP(_ context.Context, userID, code string, expiresAt time.Time) error {
	return s.mutate(userID, func(u *domain.User) {
		exp := expiresAt.UTC()
		u.OTP, u.OTPExpiresAt = &code, &exp
	})
}

func (s *UserStore) ClearOTP(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *domain.User) {
		u.OTP, u.OTPExpiresAt = nil, nil
	})
}

func (s *UserStore) Activate(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *domain.User) { u.Active = true })
}

func (s *UserStore) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return s.mutate(userID, func(u *domain.User) {
		exp := expiresAt.UTC()
		u.ResetTokenHash, u.ResetExpiresAt = &tokenHash, &exp
	})
}

func (s *UserStore) ClearResetToken(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *domain.User) {
		u.ResetTokenHash, u.ResetExpiresAt = nil, nil
	})
}

func (s *UserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.mutate(userID, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetTokenHash, u.ResetExpiresAt = nil, nil
	})
}

func (s *UserStore) LinkBillingCustomer(_ context.Context, userID, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	if u.BillingCustomerID == nil {
		id := customerID
		u.BillingCustomerID = &id
		u.UpdatedAt = s.now().UTC()
	}
	return *u.BillingCustomerID, nil
}

func (s *UserStore) mutate(userID string, fn func(u *domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = s.now().UTC()
	return nil
}

// Ping always succeeds; it lets the store serve readiness checks.
func (s *UserStore) Ping(context.Context) error { return nil }

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.OTP = cloneString(u.OTP)
	c.OTPExpiresAt = cloneTime(u.OTPExpiresAt)
	c.ResetTokenHash = cloneString(u.ResetTokenHash)
	c.ResetExpiresAt = cloneTime(u.ResetExpiresAt)
	c.BillingCustomerID = cloneString(u.BillingCustomerID)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SubscriptionStore keeps subscriptions keyed by id with a unique checkout
// session index.
type SubscriptionStore struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Subscription
	bySession map[string]string
	now       func() time.Time
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		byID:      make(map[string]*domain.Subscription),
		bySession: make(map[string]string),
		now:       time.Now,
	}
}

func (s *SubscriptionStore) Create(_ context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, exists := s.bySession[sub.CheckoutSessionID]; exists {
		return cloneSubscription(s.byID[id]), false, nil
	}
	s.byID[sub.ID] = cloneSubscription(sub)
	s.bySession[sub.CheckoutSessionID] = sub.ID
	return cloneSubscription(sub), true, nil
}

func (s *SubscriptionStore) FindByCheckoutSession(_ context.Context, checkoutSessionID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[checkoutSessionID]
	if !ok {
		return nil, errSubscriptionNotFound
	}
	return cloneSubscription(s.byID[id]), nil
}

func (s *SubscriptionStore) ListActiveByUser(_ context.Context, userID string, at time.Time) ([]*domain.Subscription, error) {
	out := s.filter(func(sub *domain.Subscription) bool {
		return sub.UserID == userID && sub.ActiveAt(at)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (s *SubscriptionStore) ListActiveLinked(_ context.Context, at time.Time) ([]*domain.Subscription, error) {
	out := s.filter(func(sub *domain.Subscription) bool {
		return sub.RemoteSubscriptionID != "" && sub.ActiveAt(at)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *SubscriptionStore) UpdateEndDate(_ context.Context, id string, endDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return errSubscriptionNotFound
	}
	sub.EndDate = endDate.UTC()
	sub.UpdatedAt = s.now().UTC()
	return nil
}

// Count reports how many subscriptions are stored.
func (s *SubscriptionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *SubscriptionStore) filter(keep func(*domain.Subscription) bool) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Subscription, 0)
	for _, sub := range s.byID {
		if keep(sub) {
			out = append(out, cloneSubscription(sub))
		}
	}
	return out
}

func cloneSubscription(s *domain.Subscription) *domain.Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
