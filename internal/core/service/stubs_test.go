package service

import (
	"context"
	"sync"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

type stubUserRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	findErr error
	links   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = cloneUser(u)
}

func (r *stubUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *stubUserRepo) SetOTP(_ context.Context, id, code string, exp time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.OTP, u.OTPExpiresAt = &code, &exp })
}

func (r *stubUserRepo) ClearOTP(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.OTP, u.OTPExpiresAt = nil, nil })
}

func (r *stubUserRepo) Activate(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.Active = true })
}

func (r *stubUserRepo) SetResetToken(_ context.Context, id, hash string, exp time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.ResetTokenHash, u.ResetExpiresAt = &hash, &exp })
}

func (r *stubUserRepo) ClearResetToken(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.ResetTokenHash, u.ResetExpiresAt = nil, nil })
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.ResetTokenHash, u.ResetExpiresAt = nil, nil
	})
}

func (r *stubUserRepo) LinkBillingCustomer(_ context.Context, id, customerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	if u.BillingCustomerID == nil {
		c := customerID
		u.BillingCustomerID = &c
		r.links++
	}
	return *u.BillingCustomerID, nil
}

type sentMail struct {
	kind     string
	to       string
	payload  string
	validFor time.Duration
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) SendOTP(_ context.Context, to, code string, validFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "otp", to: to, payload: code, validFor: validFor})
	return nil
}

func (m *stubMailer) SendPasswordReset(_ context.Context, to, link string, validFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "reset", to: to, payload: link, validFor: validFor})
	return nil
}

func (m *stubMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type stubThrottle struct {
	mu     sync.Mutex
	counts map[string]int
}

func newStubThrottle() *stubThrottle {
	return &stubThrottle{counts: make(map[string]int)}
}

func (t *stubThrottle) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key] <= limit, nil
}

func (t *stubThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, key)
	return nil
}

type stubLocker struct {
	mu sync.Mutex
}

func (l *stubLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

type stubSubRepo struct {
	mu          sync.Mutex
	subs        map[string]*domain.Subscription
	createCalls int
	updated     map[string]time.Time
}

func newStubSubRepo() *stubSubRepo {
	return &stubSubRepo{subs: make(map[string]*domain.Subscription), updated: make(map[string]time.Time)}
}

func (r *stubSubRepo) Create(_ context.Context, s *domain.Subscription) (*domain.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	for _, existing := range r.subs {
		if existing.CheckoutSessionID == s.CheckoutSessionID {
			c := *existing
			return &c, false, nil
		}
	}
	c := *s
	r.subs[s.ID] = &c
	out := c
	return &out, true, nil
}

func (r *stubSubRepo) FindByCheckoutSession(_ context.Context, id string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.CheckoutSessionID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubSubRepo) ListActiveByUser(_ context.Context, userID string, at time.Time) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if s.UserID == userID && s.ActiveAt(at) {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *stubSubRepo) ListActiveLinked(_ context.Context, at time.Time) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if s.RemoteSubscriptionID != "" && s.ActiveAt(at) {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *stubSubRepo) UpdateEndDate(_ context.Context, id string, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.EndDate = end
	r.updated[id] = end
	return nil
}

type stubProcessor struct {
	mu sync.Mutex

	customersCreated int
	idempotencyKeys  []string
	createCustomer   func(in ports.CreateCustomerInput) (string, error)
	checkoutInputs   []ports.CreateCheckoutInput

	sessions      map[string]*domain.CheckoutSession
	subscriptions map[string]*domain.RemoteSubscription
	invoices      map[string]*domain.Invoice
	getSubErr     error

	cancelled      []string
	cancelAtPeriod map[string]bool
	voided         []string
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		sessions:       make(map[string]*domain.CheckoutSession),
		subscriptions:  make(map[string]*domain.RemoteSubscription),
		invoices:       make(map[string]*domain.Invoice),
		cancelAtPeriod: make(map[string]bool),
	}
}

func (p *stubProcessor) CreateCustomer(_ context.Context, in ports.CreateCustomerInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customersCreated++
	p.idempotencyKeys = append(p.idempotencyKeys, in.IdempotencyKey)
	if p.createCustomer != nil {
		return p.createCustomer(in)
	}
	return "cus_" + in.UserID, nil
}

func (p *stubProcessor) CreateCheckoutSession(_ context.Context, in ports.CreateCheckoutInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkoutInputs = append(p.checkoutInputs, in)
	return "https://checkout.example.com/c/" + in.PriceID, nil
}

func (p *stubProcessor) GetCheckoutSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (p *stubProcessor) ListSubscriptions(_ context.Context, customerID string) ([]*domain.RemoteSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.RemoteSubscription, 0)
	for _, s := range p.subscriptions {
		if s.CustomerID == customerID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (p *stubProcessor) GetSubscription(_ context.Context, id string) (*domain.RemoteSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getSubErr != nil {
		return nil, p.getSubErr
	}
	s, ok := p.subscriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (p *stubProcessor) CancelSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, id)
	return nil
}

func (p *stubProcessor) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelAtPeriod[id] = cancel
	return nil
}

func (p *stubProcessor) ListInvoices(_ context.Context, customerID string) ([]*domain.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.Invoice, 0)
	for _, inv := range p.invoices {
		if inv.CustomerID == customerID {
			c := *inv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (p *stubProcessor) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inv, ok := p.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (p *stubProcessor) VoidInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voided = append(p.voided, id)
	inv := p.invoices[id]
	inv.Status = domain.InvoiceStatusVoid
	c := *inv
	return &c, nil
}
