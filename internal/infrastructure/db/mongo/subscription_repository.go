package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

const collectionSubscriptions = "subscriptions"

var _ ports.SubscriptionRepository = (*SubscriptionRepository)(nil)

type SubscriptionRepository struct {
	col *mongo.Collection
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection(collectionSubscriptions)}
}

type mongoSubscription struct {
	ID                   string    `bson:"_id"`
	UserID               string    `bson:"user_id"`
	Plan                 string    `bson:"plan"`
	CheckoutSessionID    string    `bson:"checkout_session_id"`
	PriceID              string    `bson:"price_id"`
	RemoteSubscriptionID string    `bson:"remote_subscription_id,omitempty"`
	StartDate            time.Time `bson:"start_date"`
	EndDate              time.Time `bson:"end_date"`
	CreatedAt            time.Time `bson:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at"`
}

func (ms *mongoSubscription) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:                   ms.ID,
		UserID:               ms.UserID,
		Plan:                 ms.Plan,
		CheckoutSessionID:    ms.CheckoutSessionID,
		PriceID:              ms.PriceID,
		RemoteSubscriptionID: ms.RemoteSubscriptionID,
		StartDate:            ms.StartDate.UTC(),
		EndDate:              ms.EndDate.UTC(),
		CreatedAt:            ms.CreatedAt.UTC(),
		UpdatedAt:            ms.UpdatedAt.UTC(),
	}
}

// Create inserts s. A duplicate checkout session id is not an error: the row
// that won the race is returned with created=false.
func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (*domain.Subscription, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoSubscription{
		ID:                   s.ID,
		UserID:               s.UserID,
		Plan:                 s.Plan,
		CheckoutSessionID:    s.CheckoutSessionID,
		PriceID:              s.PriceID,
		RemoteSubscriptionID: s.RemoteSubscriptionID,
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := r.FindByCheckoutSession(ctx, s.CheckoutSessionID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert subscription: %w", err)
	}
	return doc.toDomain(), true, nil
}

func (r *SubscriptionRepository) FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSubscription
	if err := r.col.FindOne(ctx, bson.M{"checkout_session_id": checkoutSessionID}).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound.WithMessage("subscription not found")
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return ms.toDomain(), nil
}

func (r *SubscriptionRepository) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Subscription, error) {
	filter := bson.M{"user_id": userID, "end_date": bson.M{"$gte": at.UTC()}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}}))
}

func (r *SubscriptionRepository) ListActiveLinked(ctx context.Context, at time.Time) ([]*domain.Subscription, error) {
	filter := bson.M{
		"end_date":               bson.M{"$gte": at.UTC()},
		"remote_subscription_id": bson.M{"$exists": true, "$ne": ""},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
}

func (r *SubscriptionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoSubscription
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	out := make([]*domain.Subscription, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *SubscriptionRepository) UpdateEndDate(ctx context.Context, id string, endDate time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"end_date": endDate.UTC(), "updated_at": time.Now().UTC()}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound.WithMessage("subscription not found")
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the subscriptions collection.
// The unique checkout session index is what makes confirmation exactly-once.
func (r *SubscriptionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "checkout_session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "end_date", Value: -1}}},
		{Keys: bson.D{{Key: "end_date", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
