package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/api/middleware"
)

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	// Secure is enabled in production so the cookie never travels over http.
	Secure bool
	now    func() time.Time
}

func (cc CookieConfig) clock() time.Time {
	if cc.now != nil {
		return cc.now()
	}
	return time.Now()
}

func setSessionCookie(c echo.Context, cc CookieConfig, token string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(cc.clock()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context, cc CookieConfig) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
