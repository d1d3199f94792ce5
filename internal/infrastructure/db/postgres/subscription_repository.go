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

var _ ports.SubscriptionRepository = (*SubscriptionRepository)(nil)

const subscriptionColumns = `id, user_id, plan, checkout_session_id, price_id, remote_subscription_id,
		start_date, end_date, created_at, updated_at`

var errSubscriptionNotFound = domain.ErrNotFound.WithMessage("subscription not found")

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create relies on the unique checkout_session_id index: a conflicting insert
// inserts nothing and the existing row is read back.
func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (*domain.Subscription, bool, error) {
	query :=
		`INSERT INTO subscriptions (id, user_id, plan, checkout_session_id, price_id, remote_subscription_id,
		                            start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (checkout_session_id) DO NOTHING
		 RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.UserID, s.Plan, s.CheckoutSessionID, s.PriceID, s.RemoteSubscriptionID,
		s.StartDate, s.EndDate, s.CreatedAt, s.UpdatedAt).Scan(&id)
	if err == nil {
		created := *s
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	existing, err := r.FindByCheckoutSession(ctx, s.CheckoutSessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SubscriptionRepository) FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE checkout_session_id = $1`, checkoutSessionID)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errSubscriptionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *SubscriptionRepository) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Subscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND end_date >= $2
		 ORDER BY start_date DESC`, userID, at.UTC())
}

func (r *SubscriptionRepository) ListActiveLinked(ctx context.Context, at time.Time) ([]*domain.Subscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE end_date >= $1 AND remote_subscription_id <> ''
		 ORDER BY user_id`, at.UTC())
}

func (r *SubscriptionRepository) UpdateEndDate(ctx context.Context, id string, endDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET end_date = $2, updated_at = NOW() WHERE id = $1`, id, endDate.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return errSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.CheckoutSessionID, &s.PriceID, &s.RemoteSubscriptionID,
		&s.StartDate, &s.EndDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
