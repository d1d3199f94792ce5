package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   bool                `json:"error"`
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:            http.StatusBadRequest,
	domain.KindNoOtpRequested:        http.StatusBadRequest,
	domain.KindExpired:               http.StatusBadRequest,
	domain.KindInvalidCode:           http.StatusBadRequest,
	domain.KindInvalidOrExpiredToken: http.StatusBadRequest,
	domain.KindPaymentIncomplete:     http.StatusBadRequest,
	domain.KindInvoiceNotVoidable:    http.StatusBadRequest,
	domain.KindInvalidCredentials:    http.StatusUnauthorized,
	domain.KindUnauthenticated:       http.StatusUnauthorized,
	domain.KindAccountInactive:       http.StatusForbidden,
	domain.KindForbidden:             http.StatusForbidden,
	domain.KindNotFound:              http.StatusNotFound,
	domain.KindConflict:              http.StatusConflict,
	domain.KindTooManyAttempts:       http.StatusTooManyRequests,
	domain.KindHashingFailed:         http.StatusInternalServerError,
	domain.KindEmailDeliveryFailed:   http.StatusInternalServerError,
	domain.KindUnknownPlan:           http.StatusInternalServerError,
}

// StatusFor returns the HTTP status of a domain error kind.
func StatusFor(kind domain.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain
// errors to statuses and renders one JSON envelope. 5xx causes are logged and
// replaced by a generic message.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err)
		if code >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Int("status", code).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error) (int, errorResponse) {
	// Echo's own errors (bind failures, unknown routes, ...).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: true, Message: fmt.Sprintf("%v", he.Message)}
	}

	var de *domain.Error
	if errors.As(err, &de) {
		code := StatusFor(de.Kind)
		if code >= http.StatusInternalServerError {
			return code, errorResponse{Error: true, Message: "internal server error", Code: de.Code}
		}
		return code, errorResponse{Error: true, Message: de.Message, Code: de.Code, Errors: de.Fields}
	}

	return http.StatusInternalServerError, errorResponse{Error: true, Message: "internal server error"}
}
