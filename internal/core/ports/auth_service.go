package ports

import (
	"context"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Firstname       string `validate:"min=2,max=50"`
	Lastname        string `validate:"min=2,max=50"`
	Email           string `validate:"required,email,max=254"`
	Password        string `validate:"min=8,max=128"`
	ConfirmPassword string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Profile        domain.Profile
	Token          string
	TokenExpiresAt time.Time
}

// AuthService is the authentication state machine.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Profile, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*domain.Profile, error)
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, token, newPassword string) error
	// StartSession issues a session for a user authenticated by other means.
	StartSession(user *domain.User) (*LoginResult, error)
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns false for mismatches and for malformed or foreign hashes.
	Verify(hash, candidate string) bool
}

// SessionIssuer mints and verifies signed session tokens.
type SessionIssuer interface {
	Issue(userID, email string) (token string, expiresAt time.Time, err error)
	Verify(token string) (*domain.SessionClaims, error)
	TTL() time.Duration
}
