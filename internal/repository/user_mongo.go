package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp_expense_tracker/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	Name       string        `bson:"name"`
	Phone      string        `bson:"phone"`
	Email      *string       `bson:"email,omitempty"`
	IsVerified bool          `bson:"isVerified"`
	OTP        *otpDocument  `bson:"otp,omitempty"`
	CreatedAt  time.Time     `bson:"createdAt"`
}

type otpDocument struct {
	CodeHash  string    `bson:"codeHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a MongoDB-backed UserRepository
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureUserIndexes creates the unique phone index and the sparse unique email index.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, userIndexModels()); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func userIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	doc := toUserDocument(user)
	doc.ID = bson.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (r *mongoUserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "phone", Value: phone}})
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// Update replaces the whole document, which also drops a cleared otp field.
func (r *mongoUserRepository) Update(ctx context.Context, user *model.User) error {
	oid, err := bson.ObjectIDFromHex(user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, ErrNotFound)
	}
	doc := toUserDocument(user)
	doc.ID = oid

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to update user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("failed to update user %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toModel(), nil
}

func toUserDocument(u *model.User) userDocument {
	doc := userDocument{
		Name:       u.Name,
		Phone:      u.Phone,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt.UTC(),
	}
	if u.Challenge != nil {
		doc.OTP = &otpDocument{CodeHash: u.Challenge.CodeHash, ExpiresAt: u.Challenge.ExpiresAt.UTC()}
	}
	return doc
}

func (d userDocument) toModel() *model.User {
	u := &model.User{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Phone:      d.Phone,
		Email:      d.Email,
		IsVerified: d.IsVerified,
		CreatedAt:  d.CreatedAt,
	}
	if d.OTP != nil {
		u.Challenge = &model.Challenge{CodeHash: d.OTP.CodeHash, ExpiresAt: d.OTP.ExpiresAt}
	}
	return u
}
