package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository handles user document operations
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new user repository
func NewUserRepository(store *MongoStore) *UserRepository {
	return &UserRepository{collection: store.Collection(CollectionUsers)}
}

// NewID generates a prefixed short id, e.g. user_a1b2c3d4e5f6
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s", prefix, raw[:12])
}

// GetOrCreate finds the user for a wallet address, creating the record
// on first sight. The wallet address is normalized to lowercase so the
// unique index holds regardless of checksum casing. Returns the user and
// whether it was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, walletAddress, username string) (*models.User, bool, error) {
	address := strings.ToLower(walletAddress)
	now := time.Now().UTC()

	var existing models.User
	err := r.collection.FindOne(ctx, bson.M{"walletAddress": address}).Decode(&existing)
	if err == nil {
		update := bson.M{"$set": bson.M{"lastActiveAt": now}}
		if username != "" && username != existing.Username {
			update["$set"].(bson.M)["username"] = username
			existing.Username = username
		}
		if _, err := r.collection.UpdateOne(ctx, bson.M{"userId": existing.UserID}, update); err != nil {
			return nil, false, errors.NewMirrorError("update user", err)
		}
		existing.LastActiveAt = now
		return &existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, errors.NewMirrorError("find user", err)
	}

	user := &models.User{
		UserID:        NewID("user"),
		WalletAddress: address,
		Username:      username,
		CreatedAt:     now,
		LastActiveAt:  now,
	}
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		// A concurrent first sign-in can win the insert race; fall back
		// to the record it created.
		if mongo.IsDuplicateKeyError(err) {
			var winner models.User
			if findErr := r.collection.FindOne(ctx, bson.M{"walletAddress": address}).Decode(&winner); findErr == nil {
				return &winner, false, nil
			}
		}
		return nil, false, errors.NewMirrorError("insert user", err)
	}
	return user, true, nil
}

// GetByWalletAddress finds a user by wallet address
func (r *UserRepository) GetByWalletAddress(ctx context.Context, walletAddress string) (*models.User, error) {
	address := strings.ToLower(walletAddress)

	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"walletAddress": address}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NewNotFoundError("user", walletAddress)
	}
	if err != nil {
		return nil, errors.NewMirrorError("find user", err)
	}
	return &user, nil
}

// GetByUserID finds a user by its user id
func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NewNotFoundError("user", userID)
	}
	if err != nil {
		return nil, errors.NewMirrorError("find user", err)
	}
	return &user, nil
}

// List returns users ordered by most recent activity with pagination
func (r *UserRepository) List(ctx context.Context, page, limit int) ([]*models.User, types.Pagination, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("count users", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "lastActiveAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("list users", err)
	}
	defer cursor.Close(ctx)

	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("decode users", err)
	}

	return users, types.NewPagination(page, limit, total), nil
}

// IncrementMessages bumps the user's message counter and activity time
func (r *UserRepository) IncrementMessages(ctx context.Context, userID string) error {
	update := bson.M{
		"$inc": bson.M{"totalMessages": 1},
		"$set": bson.M{"lastActiveAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"userId": userID}, update)
	if err != nil {
		return errors.NewMirrorError("increment messages", err)
	}
	if result.MatchedCount == 0 {
		return errors.NewNotFoundError("user", userID)
	}
	return nil
}

// IncrementReactions bumps the user's reaction counter and activity time
func (r *UserRepository) IncrementReactions(ctx context.Context, userID string) error {
	update := bson.M{
		"$inc": bson.M{"totalReactions": 1},
		"$set": bson.M{"lastActiveAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"userId": userID}, update)
	if err != nil {
		return errors.NewMirrorError("increment reactions", err)
	}
	if result.MatchedCount == 0 {
		return errors.NewNotFoundError("user", userID)
	}
	return nil
}
