package service

import (
	"context"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
)

// ActivityService handles the append-only activity event log
type ActivityService struct {
	activities ActivityStore
	users      UserStore
}

// NewActivityService creates a new activity service
func NewActivityService(activities ActivityStore, users UserStore) *ActivityService {
	return &ActivityService{activities: activities, users: users}
}

// RecordInput describes an activity event to append
type RecordInput struct {
	UserID         string                 `json:"userId"`
	Type           types.ActivityType     `json:"type"`
	Data           map[string]interface{} `json:"data,omitempty"`
	BlockchainData *models.BlockchainData `json:"blockchainData,omitempty"`
}

// Record appends an activity event for an existing user
func (s *ActivityService) Record(ctx context.Context, input *RecordInput) (*models.Activity, error) {
	if input.UserID == "" {
		return nil, errors.NewValidationError("userId", "must not be empty")
	}
	if !types.ValidActivityType(input.Type) {
		return nil, errors.NewValidationError("type", "unknown activity type")
	}

	user, err := s.users.GetByUserID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	activity := &models.Activity{
		UserID:         user.UserID,
		WalletAddress:  user.WalletAddress,
		Type:           input.Type,
		Data:           input.Data,
		Timestamp:      nowUTC(),
		BlockchainData: input.BlockchainData,
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// List returns activities newest first, optionally filtered by type
func (s *ActivityService) List(ctx context.Context, activityType types.ActivityType, page, limit int) ([]*models.Activity, types.Pagination, error) {
	if activityType != "" && !types.ValidActivityType(activityType) {
		return nil, types.Pagination{}, errors.NewValidationError("type", "unknown activity type")
	}
	return s.activities.List(ctx, activityType, page, limit)
}

// ListByUser returns a user's activities newest first
func (s *ActivityService) ListByUser(ctx context.Context, userID string, page, limit int) ([]*models.Activity, types.Pagination, error) {
	return s.activities.ListByUser(ctx, userID, page, limit)
}
