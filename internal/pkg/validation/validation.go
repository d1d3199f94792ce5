// Package validation wraps go-playground/validator so every failing field is
// reported at once as a domain validation error.
package validation

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// Validator is safe for concurrent use; build one at startup and share it.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Struct validates i and returns a *domain.Error of KindValidation listing
// every failing field, or nil.
func (ev *Validator) Struct(i any) error {
	return ev.Merge(i)
}

// Merge validates i and appends extra field errors (checks that do not fit a
// struct tag). It returns nil when there is nothing to report.
func (ev *Validator) Merge(i any, extra ...domain.FieldError) error {
	fields := make([]domain.FieldError, 0, len(extra))
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			fields = append(fields, domain.FieldError{Field: fieldName(fe.Field()), Message: fieldError(fe)})
		}
	}
	fields = append(fields, extra...)
	if len(fields) == 0 {
		return nil
	}
	return domain.NewValidationError(fields...)
}

// Validate satisfies the echo.Validator interface.
func (ev *Validator) Validate(i any) error {
	return ev.Struct(i)
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "numeric":
		return field + " must contain only digits"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// fieldName lowercases the first rune so Go field names match the JSON keys.
func fieldName(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
