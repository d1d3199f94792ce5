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

const collectionUsers = "users"

var _ ports.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID                string     `bson:"_id"`
	Firstname         string     `bson:"firstname"`
	Lastname          string     `bson:"lastname"`
	Email             string     `bson:"email"`
	PasswordHash      string     `bson:"password_hash"`
	Active            bool       `bson:"active"`
	OTP               *string    `bson:"otp"`
	OTPExpiresAt      *time.Time `bson:"otp_expires_at"`
	ResetTokenHash    *string    `bson:"reset_token_hash"`
	ResetExpiresAt    *time.Time `bson:"reset_expires_at"`
	BillingCustomerID *string    `bson:"billing_customer_id"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		ID:                u.ID,
		Firstname:         u.Firstname,
		Lastname:          u.Lastname,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Active:            u.Active,
		OTP:               u.OTP,
		OTPExpiresAt:      u.OTPExpiresAt,
		ResetTokenHash:    u.ResetTokenHash,
		ResetExpiresAt:    u.ResetExpiresAt,
		BillingCustomerID: u.BillingCustomerID,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (mu *mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                mu.ID,
		Firstname:         mu.Firstname,
		Lastname:          mu.Lastname,
		Email:             mu.Email,
		PasswordHash:      mu.PasswordHash,
		Active:            mu.Active,
		OTP:               mu.OTP,
		OTPExpiresAt:      utcPtr(mu.OTPExpiresAt),
		ResetTokenHash:    mu.ResetTokenHash,
		ResetExpiresAt:    utcPtr(mu.ResetExpiresAt),
		BillingCustomerID: mu.BillingCustomerID,
		CreatedAt:         mu.CreatedAt.UTC(),
		UpdatedAt:         mu.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(user)
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return r.update(ctx, userID, bson.M{"otp": code, "otp_expires_at": expiresAt.UTC()})
}

func (r *UserRepository) ClearOTP(ctx context.Context, userID string) error {
	return r.update(ctx, userID, bson.M{"otp": nil, "otp_expires_at": nil})
}

func (r *UserRepository) Activate(ctx context.Context, userID string) error {
	return r.update(ctx, userID, bson.M{"active": true})
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.update(ctx, userID, bson.M{"reset_token_hash": tokenHash, "reset_expires_at": expiresAt.UTC()})
}

func (r *UserRepository) ClearResetToken(ctx context.Context, userID string) error {
	return r.update(ctx, userID, bson.M{"reset_token_hash": nil, "reset_expires_at": nil})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.update(ctx, userID, bson.M{
		"password_hash":    passwordHash,
		"reset_token_hash": nil,
		"reset_expires_at": nil,
	})
}

// LinkBillingCustomer only writes when billing_customer_id is still null, so
// the first linker wins and later callers read the winner back.
func (r *UserRepository) LinkBillingCustomer(ctx context.Context, userID, customerID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": userID, "billing_customer_id": nil}
	update := bson.M{"$set": bson.M{"billing_customer_id": customerID, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mu mongoUser
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mu)
	if err == nil {
		return *mu.BillingCustomerID, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("link billing customer: %w", err)
	}

	existing, err := r.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing.BillingCustomerID == nil {
		return "", fmt.Errorf("link billing customer: user %s not updated", userID)
	}
	return *existing.BillingCustomerID, nil
}

func (r *UserRepository) update(ctx context.Context, userID string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique email index on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "billing_customer_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
