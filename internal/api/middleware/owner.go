package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// OwnerQuery rejects requests whose userId query parameter names someone
// other than the session user. An absent parameter means the session user.
func OwnerQuery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := CheckOwner(c, c.QueryParam("userId")); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// CheckOwner compares a client supplied user id with the session user.
func CheckOwner(c echo.Context, claimed string) error {
	uid := UserID(c)
	if uid == "" {
		return domain.ErrUnauthenticated
	}
	if claimed != "" && claimed != uid {
		return domain.ErrForbidden
	}
	return nil
}
