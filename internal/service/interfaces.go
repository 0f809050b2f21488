// Package service implements the guestbook business logic: wallet
// authentication, the sign-then-mirror write path, reaction handling and
// the merged chain/mirror read facade.
package service

import (
	"context"
	"time"

	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
)

// UserStore defines the user repository surface the services consume
type UserStore interface {
	GetOrCreate(ctx context.Context, walletAddress, username string) (*models.User, bool, error)
	GetByWalletAddress(ctx context.Context, walletAddress string) (*models.User, error)
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, page, limit int) ([]*models.User, types.Pagination, error)
	IncrementMessages(ctx context.Context, userID string) error
	IncrementReactions(ctx context.Context, userID string) error
}

// ActivityStore defines the activity repository surface
type ActivityStore interface {
	Append(ctx context.Context, activity *models.Activity) error
	List(ctx context.Context, activityType types.ActivityType, page, limit int) ([]*models.Activity, types.Pagination, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]*models.Activity, types.Pagination, error)
}

// MessageStore defines the message repository surface
type MessageStore interface {
	Record(ctx context.Context, message *models.GuestbookMessage) (bool, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.GuestbookMessage, error)
	List(ctx context.Context, page, limit int) ([]*models.GuestbookMessage, types.Pagination, error)
	ListByChainKeys(ctx context.Context, chainKeys []string) (map[string]*models.GuestbookMessage, error)
	AddReaction(ctx context.Context, messageID, userID string, kind types.ReactionKind) (*models.GuestbookMessage, error)
}

// ChainCache defines the chain read cache surface
type ChainCache interface {
	GetChainMessages(ctx context.Context) ([]ledger.Message, bool, error)
	SetChainMessages(ctx context.Context, messages []ledger.Message) error
	InvalidateChainReads(ctx context.Context) error
}

// nowUTC is indirected for tests
var nowUTC = func() time.Time { return time.Now().UTC() }
