package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

type stubVerifier struct {
	tokens map[string]*domain.SessionClaims
}

func (s *stubVerifier) Issue(string, string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not implemented")
}

func (s *stubVerifier) Verify(token string) (*domain.SessionClaims, error) {
	if c, ok := s.tokens[token]; ok {
		return c, nil
	}
	return nil, domain.ErrUnauthenticated
}

func (s *stubVerifier) TTL() time.Duration { return 15 * time.Minute }

func newVerifier() *stubVerifier {
	return &stubVerifier{tokens: map[string]*domain.SessionClaims{
		"good": {UserID: "u1", Email: "jane@x.com"},
	}}
}

func TestSessionMiddleware_Cookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "good"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Session(newVerifier())(func(c echo.Context) error {
		called = true
		if UserID(c) != "u1" || SessionEmail(c) != "jane@x.com" {
			t.Fatalf("claims not set: %q %q", UserID(c), SessionEmail(c))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestSessionMiddleware_BearerHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Session(newVerifier())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	cases := map[string]func(*http.Request){
		"missing":        func(*http.Request) {},
		"invalid cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"}) },
		"wrong scheme":   func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Token good") },
	}
	for name, prepare := range cases {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		prepare(req)
		c := e.NewContext(req, httptest.NewRecorder())

		handler := Session(newVerifier())(func(c echo.Context) error {
			t.Fatalf("%s: should not reach next", name)
			return nil
		})
		if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestOwnerQuery(t *testing.T) {
	cases := []struct {
		query   string
		session string
		want    error
	}{
		{"", "u1", nil},
		{"?userId=u1", "u1", nil},
		{"?userId=u2", "u1", domain.ErrForbidden},
		{"", "", domain.ErrUnauthenticated},
	}
	for _, tc := range cases {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/billing/invoices"+tc.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if tc.session != "" {
			c.Set(ctxUserID, tc.session)
		}

		called := false
		err := OwnerQuery()(func(echo.Context) error {
			called = true
			return nil
		})(c)

		if tc.want == nil {
			if err != nil || !called {
				t.Fatalf("query %q: expected pass, got %v", tc.query, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) || called {
			t.Fatalf("query %q: expected %v, got %v", tc.query, tc.want, err)
		}
	}
}
