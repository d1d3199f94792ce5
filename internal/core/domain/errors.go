package domain

import (
	"errors"
	"strings"
)

// Kind classifies a failure. The HTTP layer maps each kind to one status code.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindConflict              Kind = "conflict"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindUnauthenticated       Kind = "unauthenticated"
	KindAccountInactive       Kind = "account_inactive"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindExpired               Kind = "expired"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindNoOtpRequested        Kind = "no_otp_requested"
	KindInvalidCode           Kind = "invalid_code"
	KindPaymentIncomplete     Kind = "payment_incomplete"
	KindInvoiceNotVoidable    Kind = "invoice_not_voidable"
	KindTooManyAttempts       Kind = "too_many_attempts"
	KindHashingFailed         Kind = "hashing_failed"
	KindEmailDeliveryFailed   Kind = "email_delivery_failed"
	KindUnknownPlan           Kind = "unknown_plan"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type returned across the service boundary.
// Code is a stable machine-readable identifier; Fields is only populated for
// KindValidation.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, f.Message)
		}
		return e.Message + ": " + strings.Join(msgs, "; ")
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so sentinel values work with errors.Is regardless of
// message, fields or wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of the sentinel with a different user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Authentication errors
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Code: "E01", Message: "invalid email or password"} // 401
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Code: "E10", Message: "authentication required"}     // 401
	ErrAccountInactive    = &Error{Kind: KindAccountInactive, Code: "E11", Message: "account is not active"}       // 403
	ErrConflict           = &Error{Kind: KindConflict, Code: "E12", Message: "email is already registered"}        // 409
	ErrHashingFailed      = &Error{Kind: KindHashingFailed, Code: "E02", Message: "password hashing failed"}       // 500
)

// One-time password and reset token errors
var (
	ErrNoOtpRequested        = &Error{Kind: KindNoOtpRequested, Code: "E20", Message: "no OTP requested"}                     // 400
	ErrExpired               = &Error{Kind: KindExpired, Code: "E21", Message: "OTP has expired"}                             // 400
	ErrInvalidCode           = &Error{Kind: KindInvalidCode, Code: "E22", Message: "invalid OTP"}                             // 400
	ErrTooManyAttempts       = &Error{Kind: KindTooManyAttempts, Code: "E23", Message: "too many attempts, request a new code"} // 429
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Code: "E24", Message: "invalid or expired token"}      // 400
	ErrEmailDeliveryFailed   = &Error{Kind: KindEmailDeliveryFailed, Code: "E25", Message: "email delivery failed"}           // 500
)

// Billing errors
var (
	ErrPaymentIncomplete  = &Error{Kind: KindPaymentIncomplete, Code: "E30", Message: "payment not completed"}   // 400
	ErrUnknownPlan        = &Error{Kind: KindUnknownPlan, Code: "E31", Message: "price is not mapped to a plan"} // 500
	ErrInvoiceNotVoidable = &Error{Kind: KindInvoiceNotVoidable, Code: "E32", Message: "invoice cannot be voided"} // 400
)

// Generic errors
var (
	ErrValidation = &Error{Kind: KindValidation, Code: "E40", Message: "validation failed"} // 400
	ErrNotFound   = &Error{Kind: KindNotFound, Code: "E44", Message: "not found"}           // 404
	ErrForbidden  = &Error{Kind: KindForbidden, Code: "E43", Message: "access forbidden"}   // 403
)

var ErrUserNotFound = ErrNotFound.WithMessage("user not found")

// NewValidationError builds a KindValidation error carrying every field failure.
func NewValidationError(fields ...FieldError) *Error {
	cp := *ErrValidation
	cp.Fields = fields
	return &cp
}

// KindOf reports the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
