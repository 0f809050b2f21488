package storage

import (
	"context"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityRepository handles the append-only activity event log
type ActivityRepository struct {
	collection *mongo.Collection
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(store *MongoStore) *ActivityRepository {
	return &ActivityRepository{collection: store.Collection(CollectionActivities)}
}

// Append records an activity event. Events are write-once; there is no
// update or delete path.
func (r *ActivityRepository) Append(ctx context.Context, activity *models.Activity) error {
	if activity.ActivityID == "" {
		activity.ActivityID = NewID("activity")
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}
	if activity.Data == nil {
		activity.Data = map[string]interface{}{}
	}

	if _, err := r.collection.InsertOne(ctx, activity); err != nil {
		return errors.NewMirrorError("append activity", err)
	}
	return nil
}

// List returns activities newest first, optionally filtered by type
func (r *ActivityRepository) List(ctx context.Context, activityType types.ActivityType, page, limit int) ([]*models.Activity, types.Pagination, error) {
	filter := bson.M{}
	if activityType != "" {
		filter["type"] = activityType
	}
	return r.page(ctx, filter, page, limit)
}

// ListByUser returns a user's activities newest first
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]*models.Activity, types.Pagination, error) {
	return r.page(ctx, bson.M{"userId": userID}, page, limit)
}

func (r *ActivityRepository) page(ctx context.Context, filter bson.M, page, limit int) ([]*models.Activity, types.Pagination, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("count activities", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("list activities", err)
	}
	defer cursor.Close(ctx)

	activities := []*models.Activity{}
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, types.Pagination{}, errors.NewMirrorError("decode activities", err)
	}

	return activities, types.NewPagination(page, limit, total), nil
}
