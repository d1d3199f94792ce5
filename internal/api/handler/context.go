package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/lumenapp/accounts-api/internal/api/middleware"
	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// bind decodes the request body. Decoding failures are reported as a
// validation error on the payload so clients see the usual envelope.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domain.NewValidationError(domain.FieldError{Field: "body", Message: "invalid payload"})
	}
	return nil
}

// sessionUser returns the authenticated user id or ErrUnauthenticated.
// Handlers behind the Session middleware call it as a fast-fail guard.
func sessionUser(c echo.Context) (string, error) {
	uid := middleware.UserID(c)
	if uid == "" {
		return "", domain.ErrUnauthenticated
	}
	return uid, nil
}

type messageResponse struct {
	Message string `json:"message"`
}
