package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

// CookieName is the session cookie set on login.
const CookieName = "auth_token"

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
)

// Session verifies the session cookie and injects the claims into context.
// A Bearer Authorization header is accepted for non-browser clients.
func Session(verifier ports.SessionIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := sessionToken(c)
			if token == "" {
				return domain.ErrUnauthenticated
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				return domain.ErrUnauthenticated
			}

			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxEmail, claims.Email)
			return next(c)
		}
	}
}

func sessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// UserID returns the session user, or "" outside the Session middleware.
func UserID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// SessionEmail returns the email claim of the session.
func SessionEmail(c echo.Context) string {
	email, _ := c.Get(ctxEmail).(string)
	return email
}
