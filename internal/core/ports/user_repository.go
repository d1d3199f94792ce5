package ports

import (
	"context"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// UserRepository persists user credentials, one-time codes, reset tokens and
// the billing customer link. Lookups that miss return domain.ErrUserNotFound.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields domain.ErrConflict.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// SetOTP writes the code and its expiry together, overwriting any prior pair.
	SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error
	// ClearOTP nulls the code and expiry together.
	ClearOTP(ctx context.Context, userID string) error
	// Activate marks the account active.
	Activate(ctx context.Context, userID string) error

	// SetResetToken writes the token digest and expiry together.
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ClearResetToken nulls the token digest and expiry together.
	ClearResetToken(ctx context.Context, userID string) error
	// UpdatePassword stores a new hash and clears the reset pair in one write.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// LinkBillingCustomer sets the billing customer id only if none is linked
	// yet and returns the id that is linked after the call.
	LinkBillingCustomer(ctx context.Context, userID, customerID string) (string, error)
}
