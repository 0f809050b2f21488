package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository handles the guestbook_messages mirror collection
type MessageRepository struct {
	collection *mongo.Collection
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(store *MongoStore) *MessageRepository {
	return &MessageRepository{collection: store.Collection(CollectionMessages)}
}

// NewMessageRecord builds a mirror record for a confirmed chain write
func NewMessageRecord(userID, walletAddress, username, content, tag, txHash, chainKey string, timestamp time.Time) *models.GuestbookMessage {
	return &models.GuestbookMessage{
		MessageID:     NewID("msg"),
		UserID:        userID,
		WalletAddress: walletAddress,
		Username:      username,
		Message:       content,
		Tag:           tag,
		TxHash:        txHash,
		ChainKey:      chainKey,
		Timestamp:     timestamp,
		UserReactions: []string{},
	}
}

// Record mirrors a confirmed chain write, keyed by txHash. The upsert
// with $setOnInsert makes retries and concurrent mirror attempts
// idempotent: the first writer wins, later attempts are no-ops. Returns
// whether a record was created.
func (r *MessageRepository) Record(ctx context.Context, message *models.GuestbookMessage) (bool, error) {
	if message.TxHash == "" {
		return false, errors.NewValidationError("txHash", "must not be empty")
	}

	update := bson.M{"$setOnInsert": message}
	opts := options.Update().SetUpsert(true)

	result, err := r.collection.UpdateOne(ctx, bson.M{"txHash": message.TxHash}, update, opts)
	if err != nil {
		return false, errors.NewMirrorError("record message", err)
	}
	return result.UpsertedCount > 0, nil
}

// GetByMessageID finds a message by its mirror id
func (r *MessageRepository) GetByMessageID(ctx context.Context, messageID string) (*models.GuestbookMessage, error) {
	var message models.GuestbookMessage
	err := r.collection.FindOne(ctx, bson.M{"messageId": messageID}).Decode(&message)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	if err != nil {
		return nil, errors.NewMirrorError("find message", err)
	}
	return &message, nil
}

// List returns mirror records newest first with pagination
func (r *MessageRepository) List(ctx context.Context, page, limit int) ([]*models.GuestbookMessage, types.Pagination, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("count messages", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("list messages", err)
	}
	defer cursor.Close(ctx)

	messages := []*models.GuestbookMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("decode messages", err)
	}

	return messages, types.NewPagination(page, limit, total), nil
}

// ListByChainKeys returns the mirror records for a set of chain keys,
// mapped by key. Used by the read facade to annotate chain reads.
func (r *MessageRepository) ListByChainKeys(ctx context.Context, chainKeys []string) (map[string]*models.GuestbookMessage, error) {
	if len(chainKeys) == 0 {
		return map[string]*models.GuestbookMessage{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"chainKey": bson.M{"$in": chainKeys}})
	if err != nil {
		return nil, errors.NewMirrorError("list messages by chain key", err)
	}
	defer cursor.Close(ctx)

	byKey := make(map[string]*models.GuestbookMessage, len(chainKeys))
	for cursor.Next(ctx) {
		var message models.GuestbookMessage
		if err := cursor.Decode(&message); err != nil {
			return nil, errors.NewMirrorError("decode message", err)
		}
		byKey[message.ChainKey] = &message
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.NewMirrorError("iterate messages", err)
	}
	return byKey, nil
}

// ExistingChainKeys returns which of the given chain keys already have a
// mirror record. Used by the reconciliation worker to find gaps.
func (r *MessageRepository) ExistingChainKeys(ctx context.Context, chainKeys []string) (map[string]bool, error) {
	if len(chainKeys) == 0 {
		return map[string]bool{}, nil
	}

	opts := options.Find().SetProjection(bson.M{"chainKey": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"chainKey": bson.M{"$in": chainKeys}}, opts)
	if err != nil {
		return nil, errors.NewMirrorError("list chain keys", err)
	}
	defer cursor.Close(ctx)

	existing := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			ChainKey string `bson:"chainKey"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.NewMirrorError("decode chain key", err)
		}
		existing[doc.ChainKey] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.NewMirrorError("iterate chain keys", err)
	}
	return existing, nil
}

// AdoptChainKey attaches a chain key to a mirror record stored without
// one: a client confirmation mirrored before its message was visible on
// chain. Matching on wallet and content lets the reconciler update the
// existing record instead of inserting a second one for the same chain
// message. Returns whether a record was adopted.
func (r *MessageRepository) AdoptChainKey(ctx context.Context, walletAddress, content, chainKey string) (bool, error) {
	filter := bson.M{
		"chainKey":      "",
		"walletAddress": strings.ToLower(walletAddress),
		"message":       content,
	}
	update := bson.M{"$set": bson.M{"chainKey": chainKey}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.NewMirrorError("adopt chain key", err)
	}
	return result.ModifiedCount > 0, nil
}

// AddReaction increments one reaction counter, guarded by the per-user
// dedup array. A single conditional update keeps check and increment
// atomic: the filter only matches when userID is absent from
// userReactions, so two concurrent reactions from the same user cannot
// both increment.
func (r *MessageRepository) AddReaction(ctx context.Context, messageID, userID string, kind types.ReactionKind) (*models.GuestbookMessage, error) {
	if !types.ValidReactionKind(kind) {
		return nil, errors.NewValidationError("reactionType", fmt.Sprintf("unknown reaction %q", kind))
	}

	filter := bson.M{
		"messageId":     messageID,
		"userReactions": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$inc":  bson.M{fmt.Sprintf("reactions.%s", kind): 1},
		"$push": bson.M{"userReactions": userID},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, errors.NewMirrorError("add reaction", err)
	}
	if result.MatchedCount == 0 {
		// Either the message does not exist or the user already reacted;
		// disambiguate with a lookup.
		if _, lookupErr := r.GetByMessageID(ctx, messageID); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, errors.NewAlreadyReactedError(messageID, userID)
	}

	return r.GetByMessageID(ctx, messageID)
}
