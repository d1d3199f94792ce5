package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/api/handler"
	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
	"github.com/lumenapp/accounts-api/internal/core/service"
	"github.com/lumenapp/accounts-api/internal/infrastructure/db/memory"
)

const routerSecret = "router-test-secret-0123456789abcdef"

type fakeProcessor struct{}

func (fakeProcessor) CreateCustomer(context.Context, ports.CreateCustomerInput) (string, error) {
	return "cus_1", nil
}

func (fakeProcessor) CreateCheckoutSession(_ context.Context, in ports.CreateCheckoutInput) (string, error) {
	return "https://checkout.example.com/" + in.PriceID, nil
}

func (fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	return &domain.CheckoutSession{
		ID:             id,
		CustomerID:     "cus_1",
		PaymentStatus:  domain.PaymentStatusPaid,
		PriceID:        "price_pro",
		SubscriptionID: "sub_1",
	}, nil
}

func (fakeProcessor) ListSubscriptions(context.Context, string) ([]*domain.RemoteSubscription, error) {
	return nil, nil
}

func (fakeProcessor) GetSubscription(context.Context, string) (*domain.RemoteSubscription, error) {
	return nil, domain.ErrNotFound
}

func (fakeProcessor) CancelSubscription(context.Context, string) error { return nil }

func (fakeProcessor) SetCancelAtPeriodEnd(context.Context, string, bool) error { return nil }

func (fakeProcessor) ListInvoices(context.Context, string) ([]*domain.Invoice, error) {
	return nil, nil
}

func (fakeProcessor) GetInvoice(context.Context, string) (*domain.Invoice, error) {
	return nil, domain.ErrNotFound
}

func (fakeProcessor) VoidInvoice(context.Context, string) (*domain.Invoice, error) {
	return nil, domain.ErrNotFound
}

type recordingMailer struct {
	mu   sync.Mutex
	otps []string
}

func (m *recordingMailer) SendOTP(_ context.Context, to, _ string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps = append(m.otps, to)
	return nil
}

func (m *recordingMailer) SendPasswordReset(context.Context, string, string, time.Duration) error {
	return nil
}

func newTestRouter(t *testing.T) (*echo.Echo, *recordingMailer) {
	t.Helper()
	users := memory.NewUserStore()
	subs := memory.NewSubscriptionStore()
	mailer := &recordingMailer{}
	sessions := service.NewSessionIssuer(routerSecret, 15*time.Minute, nil)
	log := zerolog.Nop()

	authSvc := service.NewAuthService(service.AuthDeps{
		Users: users,
		Hasher: service.NewArgon2Hasher(service.Argon2Params{
			Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		}),
		Sessions: sessions,
		Mailer:   mailer,
		Throttle: memory.NewThrottle(),
		Logger:   log,
	}, service.AuthConfig{
		RequireConfirmPassword: true,
		OTPMaxAttempts:         5,
		ResetMaxPerHour:        3,
		AppBaseURL:             "http://app.test",
	})
	billingSvc := service.NewBillingService(users, subs, fakeProcessor{}, memory.NewLocker(), log, service.BillingConfig{
		AppBaseURL: "http://app.test",
		Plans:      map[string]string{"price_pro": "Pro"},
	})

	e := NewRouter(Deps{
		Auth:     authSvc,
		Billing:  billingSvc,
		Sessions: sessions,
		Health:   map[string]handler.Pinger{"store": users},
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	})
	return e, mailer
}

func do(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, e *echo.Echo) *http.Cookie {
	t.Helper()
	rec := do(e, http.MethodPost, "/auth/register",
		`{"firstname":"Ada","lastname":"Lovelace","email":"ada@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"s3cret-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("login did not set the session cookie")
	return nil
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	e, _ := newTestRouter(t)
	cookie := registerAndLogin(t, e)

	rec := do(e, http.MethodGet, "/auth/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"email":"ada@example.com"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("profile leaks credentials: %s", rec.Body.String())
	}
}

func TestRouter_MeWithoutSession(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(e, http.MethodGet, "/auth/me", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/auth/me", "", &http.Cookie{Name: "auth_token", Value: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a forged token, got %d", rec.Code)
	}
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	e, _ := newTestRouter(t)
	registerAndLogin(t, e)

	wrong := do(e, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"not-the-one"}`)
	unknown := do(e, http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"not-the-one"}`)
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 twice, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", wrong.Body.String(), unknown.Body.String())
	}
}

func TestRouter_SendOTPIsGeneric(t *testing.T) {
	e, mailer := newTestRouter(t)
	registerAndLogin(t, e)

	known := do(e, http.MethodPost, "/auth/send-otp", `{"email":"ada@example.com"}`)
	unknown := do(e, http.MethodPost, "/auth/send-otp", `{"email":"nobody@example.com"}`)
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 twice, got %d and %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", known.Body.String(), unknown.Body.String())
	}
	if len(mailer.otps) != 1 || mailer.otps[0] != "ada@example.com" {
		t.Fatalf("unexpected deliveries %v", mailer.otps)
	}

	rec := do(e, http.MethodPost, "/auth/send-otp", `{"email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed email, got %d", rec.Code)
	}
}

func TestRouter_CheckoutFlow(t *testing.T) {
	e, _ := newTestRouter(t)
	cookie := registerAndLogin(t, e)

	rec := do(e, http.MethodPost, "/billing/checkout", `{"priceId":"price_pro"}`, cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "checkout.example.com/price_pro") {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/billing/subscriptions/confirm", `{"sessionId":"cs_1"}`, cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"plan":"Pro"`) {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/billing/subscriptions/active", "", cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"checkoutSessionId":"cs_1"`) {
		t.Fatalf("active: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_BillingOwnership(t *testing.T) {
	e, _ := newTestRouter(t)
	cookie := registerAndLogin(t, e)

	rec := do(e, http.MethodGet, "/billing/subscriptions/active?userId=someone-else", "", cookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/billing/invoices", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e, _ := newTestRouter(t)

	if rec := do(e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("liveness: %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":{"status":"ok"}`) {
		t.Fatalf("readiness: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "accounts_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
