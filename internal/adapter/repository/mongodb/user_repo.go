package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/homestay-labs/listing-service/internal/listing/domain"
)

// UserRepository only patches and reads user documents; the user lifecycle
// belongs to another service.
type UserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewUserRepository(db *mongo.Database, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
		logger:     logger,
	}
}

// PushListing appends the listing id to the user's listing array. Plain $push,
// no dedup: the array mirrors insertion order.
func (r *UserRepository) PushListing(ctx context.Context, userID, listingID string) error {
	return r.patchListingArray(ctx, userID, bson.M{"$push": bson.M{"listing": listingID}})
}

// PullListing removes every occurrence of the listing id from the user's
// listing array.
func (r *UserRepository) PullListing(ctx context.Context, userID, listingID string) error {
	return r.patchListingArray(ctx, userID, bson.M{"$pull": bson.M{"listing": listingID}})
}

func (r *UserRepository) patchListingArray(ctx context.Context, userID string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		r.logger.Error("UpdateOne failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) GetEmailByID(ctx context.Context, userID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	var doc struct {
		Email string `bson:"email"`
	}
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		r.logger.Error("FindOne failed", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	return doc.Email, nil
}
