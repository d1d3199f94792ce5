package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

var _ ports.UserRepository = (*UserRepository)(nil)

const userColumns = `id, firstname, lastname, email, password_hash, active,
		otp, otp_expires_at, reset_token_hash, reset_expires_at,
		billing_customer_id, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query :=
		`INSERT INTO users (id, firstname, lastname, email, password_hash, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Firstname, user.Lastname, user.Email, user.PasswordHash, user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	created := *user
	return &created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		u                            domain.User
		otp, resetHash, customerID   sql.NullString
		otpExpiresAt, resetExpiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Firstname, &u.Lastname, &u.Email, &u.PasswordHash, &u.Active,
		&otp, &otpExpiresAt, &resetHash, &resetExpiresAt,
		&customerID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.OTP = nullString(otp)
	u.OTPExpiresAt = nullTime(otpExpiresAt)
	u.ResetTokenHash = nullString(resetHash)
	u.ResetExpiresAt = nullTime(resetExpiresAt)
	u.BillingCustomerID = nullString(customerID)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return r.exec(ctx, `UPDATE users SET otp = $2, otp_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		userID, code, expiresAt.UTC())
}

func (r *UserRepository) ClearOTP(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE users SET otp = NULL, otp_expires_at = NULL, updated_at = NOW() WHERE id = $1`, userID)
}

func (r *UserRepository) Activate(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE users SET active = TRUE, updated_at = NOW() WHERE id = $1`, userID)
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, `UPDATE users SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		userID, tokenHash, expiresAt.UTC())
}

func (r *UserRepository) ClearResetToken(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW() WHERE id = $1`, userID)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash)
}

// LinkBillingCustomer is a conditional write: only a null column is set, and
// the caller always gets back the id that ended up linked.
func (r *UserRepository) LinkBillingCustomer(ctx context.Context, userID, customerID string) (string, error) {
	query :=
		`UPDATE users SET billing_customer_id = $2, updated_at = NOW()
		 WHERE id = $1 AND billing_customer_id IS NULL
		 RETURNING billing_customer_id`

	var linked string
	err := r.db.QueryRowContext(ctx, query, userID, customerID).Scan(&linked)
	if err == nil {
		return linked, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("db error: %w", err)
	}

	var existing sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT billing_customer_id FROM users WHERE id = $1`, userID).Scan(&existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	if !existing.Valid {
		return "", fmt.Errorf("db error: billing customer of user %s not updated", userID)
	}
	return existing.String, nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
